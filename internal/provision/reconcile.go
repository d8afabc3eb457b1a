package provision

import (
	"encoding/json"
	"reflect"

	"github.com/ACTRIS-CCRES/infra-hkd/internal/grafana"
)

// MergeRuleGroups reconciles one folder's rule groups non-destructively.
// Desired groups are matched to remote groups by name (first match wins);
// within a matched group, desired rules are matched to remote rules by
// title and replace the matching entry in place, otherwise they are
// appended. Remote groups and rules with no desired counterpart are
// preserved untouched — they may have been created out-of-band.
//
// When a desired rule replaces a remote one, the remote rule's
// server-assigned UID is carried over so Grafana updates the rule instead
// of recreating it under a new identity.
//
// Neither input is mutated.
func MergeRuleGroups(remote, desired []grafana.RuleGroup) []grafana.RuleGroup {
	merged := cloneGroups(remote)

	for _, dg := range desired {
		idx := -1
		for i, rg := range merged {
			if rg.Name == dg.Name {
				idx = i
				break
			}
		}
		if idx < 0 {
			merged = append(merged, grafana.RuleGroup{Name: dg.Name})
			idx = len(merged) - 1
		}

		merged[idx].Interval = dg.Interval
		for _, rule := range dg.Rules {
			merged[idx].Rules = mergeRule(merged[idx].Rules, rule)
		}
	}
	return merged
}

// mergeRule replaces the rule with the same title in place, or appends.
func mergeRule(rules []grafana.Rule, rule grafana.Rule) []grafana.Rule {
	for i, existing := range rules {
		if existing.Title() == rule.Title() {
			rule.GrafanaAlert.UID = existing.GrafanaAlert.UID
			rules[i] = rule
			return rules
		}
	}
	return append(rules, rule)
}

// ReplaceRuleGroups builds one folder's rule configuration from scratch:
// the desired groups concatenated, with duplicate rule titles across the
// whole folder removed (first occurrence wins). Used after the remote
// folder's configuration has been deleted.
func ReplaceRuleGroups(desired []grafana.RuleGroup) []grafana.RuleGroup {
	seen := make(map[string]bool)
	var out []grafana.RuleGroup
	for _, g := range desired {
		fresh := grafana.RuleGroup{Name: g.Name, Interval: g.Interval}
		for _, r := range g.Rules {
			if seen[r.Title()] {
				continue
			}
			seen[r.Title()] = true
			fresh.Rules = append(fresh.Rules, r)
		}
		out = append(out, fresh)
	}
	return out
}

// MergeContactPoint reconciles one contact point into the alertmanager
// document: the receiver with the same name gets its whole config list
// replaced (the desired settings carry the full recomputed membership),
// otherwise a new receiver is appended.
func MergeContactPoint(doc *grafana.AlertmanagerDocument, cp grafana.ContactPointConfig) {
	receivers := doc.AlertmanagerConfig.Receivers
	for i, r := range receivers {
		if r.Name == cp.Name {
			receivers[i].GrafanaManagedReceiverConfigs = []grafana.ContactPointConfig{cp}
			return
		}
	}
	doc.AlertmanagerConfig.Receivers = append(receivers, grafana.Receiver{
		Name:                          cp.Name,
		GrafanaManagedReceiverConfigs: []grafana.ContactPointConfig{cp},
	})
}

// MergeRoute reconciles one notification policy into the routing tree:
// the route delivering to the same receiver is overwritten in place,
// otherwise the route is appended.
func MergeRoute(doc *grafana.AlertmanagerDocument, route grafana.Route) {
	routes := doc.AlertmanagerConfig.Route.Routes
	for i, r := range routes {
		if r.Receiver == route.Receiver {
			routes[i] = route
			return
		}
	}
	doc.AlertmanagerConfig.Route.Routes = append(routes, route)
}

// ChangedGroups returns the merged groups whose content differs from their
// remote counterpart, i.e. the minimal set of group documents to push.
// Comparison happens on the JSON form, so numeric type differences between
// freshly built and fetched documents do not register as changes.
func ChangedGroups(remote, merged []grafana.RuleGroup) []grafana.RuleGroup {
	byName := make(map[string]grafana.RuleGroup, len(remote))
	for _, g := range remote {
		byName[g.Name] = g
	}

	var changed []grafana.RuleGroup
	for _, g := range merged {
		prev, ok := byName[g.Name]
		if !ok || !jsonEqual(prev, g) {
			changed = append(changed, g)
		}
	}
	return changed
}

// jsonEqual compares two values through their JSON encoding.
func jsonEqual(a, b any) bool {
	rawA, errA := json.Marshal(a)
	rawB, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	var va, vb any
	if json.Unmarshal(rawA, &va) != nil || json.Unmarshal(rawB, &vb) != nil {
		return false
	}
	return reflect.DeepEqual(va, vb)
}

// cloneDocument deep-copies an alertmanager document through JSON, so the
// pre-merge state can be compared against the merged result.
func cloneDocument(doc *grafana.AlertmanagerDocument) *grafana.AlertmanagerDocument {
	raw, err := json.Marshal(doc)
	if err != nil {
		return &grafana.AlertmanagerDocument{}
	}
	var out grafana.AlertmanagerDocument
	if err := json.Unmarshal(raw, &out); err != nil {
		return &grafana.AlertmanagerDocument{}
	}
	return &out
}

func cloneGroups(groups []grafana.RuleGroup) []grafana.RuleGroup {
	out := make([]grafana.RuleGroup, len(groups))
	for i, g := range groups {
		out[i] = cloneGroup(g)
	}
	return out
}

func cloneGroup(g grafana.RuleGroup) grafana.RuleGroup {
	clone := g
	clone.Rules = make([]grafana.Rule, len(g.Rules))
	copy(clone.Rules, g.Rules)
	return clone
}
