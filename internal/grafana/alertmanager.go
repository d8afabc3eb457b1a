package grafana

import "strings"

// Match operators for notification policy object matchers.
const (
	MatchEqual     = "="
	MatchNotEqual  = "!="
	MatchRegexp    = "=~"
	MatchNotRegexp = "!~"
)

// AlertmanagerDocument is the whole-document body of
// GET/POST /alertmanager/grafana/config/api/v1/alerts. There is no partial
// update endpoint: reconciliation mutates the fetched document and posts it
// back in full.
type AlertmanagerDocument struct {
	TemplateFiles      map[string]string  `json:"template_files,omitempty"`
	AlertmanagerConfig AlertmanagerConfig `json:"alertmanager_config"`
}

// AlertmanagerConfig holds the receivers (contact points) and the routing
// tree of an alertmanager configuration.
type AlertmanagerConfig struct {
	Receivers []Receiver `json:"receivers"`
	Route     RouteTree  `json:"route"`
}

// Receiver is one named contact point with its Grafana-managed configs.
type Receiver struct {
	Name                          string               `json:"name"`
	GrafanaManagedReceiverConfigs []ContactPointConfig `json:"grafana_managed_receiver_configs,omitempty"`
}

// ContactPointConfig is one delivery channel inside a receiver.
type ContactPointConfig struct {
	UID                   string         `json:"uid,omitempty"`
	Name                  string         `json:"name"`
	Type                  string         `json:"type"`
	Settings              map[string]any `json:"settings"`
	DisableResolveMessage bool           `json:"disableResolveMessage"`
	Provenance            string         `json:"provenance,omitempty"`
}

// EmailContactPoint builds an email contact point config. Grafana stores the
// address list as one ";"-joined settings string.
func EmailContactPoint(name string, addresses []string, singleEmail bool) ContactPointConfig {
	return ContactPointConfig{
		Name: name,
		Type: "email",
		Settings: map[string]any{
			"addresses":   strings.Join(addresses, ";"),
			"singleEmail": singleEmail,
		},
	}
}

// RouteTree is the root of the notification routing tree. Grafana keeps the
// default receiver on the root node and the specific policies under Routes.
type RouteTree struct {
	Receiver       string   `json:"receiver,omitempty"`
	GroupBy        []string `json:"group_by,omitempty"`
	GroupWait      string   `json:"group_wait,omitempty"`
	GroupInterval  string   `json:"group_interval,omitempty"`
	RepeatInterval string   `json:"repeat_interval,omitempty"`
	Routes         []Route  `json:"routes,omitempty"`
}

// Route is one notification policy: alerts whose labels satisfy all object
// matchers are delivered to Receiver.
type Route struct {
	Receiver       string      `json:"receiver"`
	ObjectMatchers [][3]string `json:"object_matchers,omitempty"`
	GroupBy        []string    `json:"group_by,omitempty"`
	GroupWait      string      `json:"group_wait,omitempty"`
	GroupInterval  string      `json:"group_interval,omitempty"`
	RepeatInterval string      `json:"repeat_interval,omitempty"`
	Continue       bool        `json:"continue,omitempty"`
}

// Matcher builds one object matcher triple: label, operator, value.
func Matcher(label, op, value string) [3]string {
	return [3]string{label, op, value}
}
