package grafana

// Folder is a remote namespace grouping dashboards and rule groups.
// Desired folders are identified by Title; the remote side assigns UID.
type Folder struct {
	Title string `json:"title"`
	UID   string `json:"uid,omitempty"`
}

// FolderList is the body of GET /folders/.
type FolderList []Folder

// UIDOf resolves a folder title to its server-assigned UID.
func (l FolderList) UIDOf(title string) (string, bool) {
	for _, f := range l {
		if f.Title == title {
			return f.UID, true
		}
	}
	return "", false
}
