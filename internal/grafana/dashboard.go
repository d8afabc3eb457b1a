package grafana

// Dashboard is the dashboard JSON model, limited to the fields this system
// writes. UID and ID are left to the server unless overwriting.
type Dashboard struct {
	UID         string   `json:"uid,omitempty"`
	ID          int64    `json:"id,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Timezone    string   `json:"timezone,omitempty"`
	Panels      []Panel  `json:"panels"`
}

// Panel is one dashboard panel. This system only writes timeseries panels,
// one per monitored parameter.
type Panel struct {
	ID         int            `json:"id"`
	Title      string         `json:"title"`
	Type       string         `json:"type"`
	Datasource map[string]any `json:"datasource,omitempty"`
	Targets    []PanelTarget  `json:"targets"`
	GridPos    GridPos        `json:"gridPos"`
}

// PanelTarget is one query of a panel.
type PanelTarget struct {
	RefID      string         `json:"refId,omitempty"`
	Query      string         `json:"query"`
	Datasource map[string]any `json:"datasource,omitempty"`
}

// GridPos places a panel on the dashboard grid (24 columns wide).
type GridPos struct {
	H int `json:"h"`
	W int `json:"w"`
	X int `json:"x"`
	Y int `json:"y"`
}

// TimeseriesPanel builds a timeseries panel with a single flux query target.
func TimeseriesPanel(id int, title, query, datasourceType, datasourceUID string, pos GridPos) Panel {
	ds := map[string]any{"type": datasourceType}
	if datasourceUID != "" {
		ds["uid"] = datasourceUID
	}
	return Panel{
		ID:         id,
		Title:      title,
		Type:       "timeseries",
		Datasource: ds,
		Targets: []PanelTarget{
			{RefID: "A", Query: query, Datasource: ds},
		},
		GridPos: pos,
	}
}

// DashboardPush is the body of POST /dashboards/db.
type DashboardPush struct {
	Dashboard Dashboard `json:"dashboard"`
	Overwrite bool      `json:"overwrite"`
	FolderUID string    `json:"folderUid,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// DashboardHit is one result of GET /search?type=dash-db.
type DashboardHit struct {
	UID         string `json:"uid"`
	Title       string `json:"title"`
	FolderUID   string `json:"folderUid,omitempty"`
	FolderTitle string `json:"folderTitle,omitempty"`
}
