package models

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/iudanet/flocksync/internal/aol"
	"github.com/iudanet/flocksync/internal/validation"
)

// Type tags identifying record kinds in the fact log.
const (
	TypeInstance = "instance"
	TypeApp      = "app"
	TypeService  = "service"
)

// Instance is a follower database instance: a locally served copy that
// may track an external leader.
type Instance struct {
	ID       string    `json:"id"`
	Slug     string    `json:"slug"`
	Name     string    `json:"name"`
	URL      string    `json:"url"`
	Leader   string    `json:"leader"`
	Username string    `json:"username"`
	Password string    `json:"password"`
	State    SyncState `json:"state"`
	AutoSync bool      `json:"auto_sync"`
}

// RecordID implements aol.Record.
func (i Instance) RecordID() string { return i.ID }

// Fields implements aol.Record. The order is stable so that encoding the
// same record twice emits facts in the same order.
func (i Instance) Fields() []aol.FieldValue {
	return []aol.FieldValue{
		{Name: "id", Value: i.ID},
		{Name: "slug", Value: i.Slug},
		{Name: "name", Value: i.Name},
		{Name: "url", Value: i.URL},
		{Name: "leader", Value: i.Leader},
		{Name: "username", Value: i.Username},
		{Name: "password", Value: i.Password},
		{Name: "state", Value: string(i.State)},
		{Name: "is_auto_syncing", Value: strconv.FormatBool(i.AutoSync)},
	}
}

// App is the bundled web front-end record.
type App struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (a App) RecordID() string { return a.ID }

func (a App) Fields() []aol.FieldValue {
	return []aol.FieldValue{
		{Name: "id", Value: a.ID},
		{Name: "url", Value: a.URL},
	}
}

// Service is the local web service that serves follower instances.
type Service struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (s Service) RecordID() string { return s.ID }

func (s Service) Fields() []aol.FieldValue {
	return []aol.FieldValue{
		{Name: "id", Value: s.ID},
		{Name: "url", Value: s.URL},
	}
}

// joinFailures concatenates all validation failures for one record into a
// single descriptive error, sorted for determinism.
func joinFailures(failures []string) error {
	sort.Strings(failures)
	return errors.New(strings.Join(failures, " "))
}

// NewInstance builds a validated Instance, minting an ID and defaulting
// the state when they are not supplied. It returns no record rather than
// a partially valid one.
func NewInstance(inst Instance) (Instance, error) {
	if inst.ID == "" {
		inst.ID = uuid.New().String()
	}
	if inst.State == "" {
		inst.State = StateNotSynced
	}
	if inst.Name == "" {
		inst.Name = inst.Slug
	}

	var failures []string
	if err := validation.ValidateSlug(inst.Slug); err != nil {
		failures = append(failures, err.Error()+".")
	}
	if err := ValidateState(inst.State); err != nil {
		failures = append(failures, err.Error()+".")
	}
	if len(failures) > 0 {
		return Instance{}, joinFailures(failures)
	}
	return inst, nil
}

// ConstructInstance rebuilds an Instance from a decoded attribute map.
// Field values are checked structurally first (the auto-sync flag must be
// a boolean), then the field validators run.
func ConstructInstance(fields map[string]string) (aol.Record, error) {
	var failures []string

	autoSync := false
	if raw, ok := fields["is_auto_syncing"]; ok {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			failures = append(failures,
				fmt.Sprintf("Value %q is not a boolean for attribute \"is_auto_syncing\".", raw))
		}
		autoSync = parsed
	}

	inst := Instance{
		ID:       fields["id"],
		Slug:     fields["slug"],
		Name:     fields["name"],
		URL:      fields["url"],
		Leader:   fields["leader"],
		Username: fields["username"],
		Password: fields["password"],
		State:    SyncState(fields["state"]),
		AutoSync: autoSync,
	}
	if len(failures) > 0 {
		return nil, joinFailures(failures)
	}

	inst, err := NewInstance(inst)
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// ConstructApp rebuilds an App from a decoded attribute map.
func ConstructApp(fields map[string]string) (aol.Record, error) {
	app := App{ID: fields["id"], URL: fields["url"]}
	if app.ID == "" {
		app.ID = uuid.New().String()
	}
	return app, nil
}

// ConstructService rebuilds a Service from a decoded attribute map.
func ConstructService(fields map[string]string) (aol.Record, error) {
	svc := Service{ID: fields["id"], URL: fields["url"]}
	if svc.ID == "" {
		svc.ID = uuid.New().String()
	}
	return svc, nil
}

// Constructors maps every recognized type tag to its record constructor,
// for use with aol.Decode.
func Constructors() map[string]aol.Constructor {
	return map[string]aol.Constructor{
		TypeInstance: ConstructInstance,
		TypeApp:      ConstructApp,
		TypeService:  ConstructService,
	}
}
