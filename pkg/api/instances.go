// Package api defines the wire types shared between the coordination
// service and its clients.
package api

// Instance is the wire form of a live follower-instance record. The ID is
// the record's stable history ID: it survives versioning, while each
// mutation creates a new storage row behind it.
type Instance struct {
	ID       string `json:"id"`
	Slug     string `json:"slug"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Leader   string `json:"leader,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	State    string `json:"state"`
	AutoSync bool   `json:"auto_sync"`
}

// CreateInstanceRequest creates a new follower-instance record. Name
// defaults to the slug when empty.
type CreateInstanceRequest struct {
	Slug     string `json:"slug"`
	Name     string `json:"name,omitempty"`
	URL      string `json:"url,omitempty"`
	Leader   string `json:"leader,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	AutoSync bool   `json:"auto_sync"`
}

// UpdateInstanceRequest creates a new version of an instance record.
// Slug and state changes submitted through this path are silently
// ignored; state only moves through the transition endpoint.
type UpdateInstanceRequest struct {
	Name     *string `json:"name,omitempty"`
	URL      *string `json:"url,omitempty"`
	Leader   *string `json:"leader,omitempty"`
	Username *string `json:"username,omitempty"`
	Password *string `json:"password,omitempty"`
	AutoSync *bool   `json:"auto_sync,omitempty"`
}

// TransitionRequest asks for a sync-state transition.
type TransitionRequest struct {
	State string `json:"state"`
}

// App is the wire form of the front-end app record.
type App struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Service is the wire form of the follower web-service record.
type Service struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// UpdateURLRequest updates the URL of the app or service record.
type UpdateURLRequest struct {
	URL string `json:"url"`
}
