package aol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/flocksync/internal/aol"
	"github.com/iudanet/flocksync/internal/models"
)

func validInstance(t *testing.T) models.Instance {
	t.Helper()
	inst, err := models.NewInstance(models.Instance{
		Slug:     "oka",
		Name:     "Okanagan",
		URL:      "http://127.0.0.1:5679/oka",
		Leader:   "https://leader.example.org/oka",
		Username: "admin",
		Password: "secret",
		State:    models.StateNotSynced,
		AutoSync: true,
	})
	require.NoError(t, err)
	return inst
}

func TestEncode_EmitsBeingTypeAndFieldFacts(t *testing.T) {
	inst := validInstance(t)
	facts := aol.Encode(inst, models.TypeInstance)

	require.Len(t, facts, 2+len(inst.Fields()))
	assert.Equal(t, aol.HasAttr, facts[0].Attribute)
	assert.Equal(t, aol.BeingVal, facts[0].Value)
	assert.Equal(t, inst.ID, facts[0].Entity)
	assert.Equal(t, aol.IsAAttr, facts[1].Attribute)
	assert.Equal(t, models.TypeInstance, facts[1].Value)

	// Field attributes use the human-readable naming convention.
	attrs := make(map[string]string)
	for _, f := range facts[2:] {
		attrs[f.Attribute] = f.Value
	}
	assert.Equal(t, "oka", attrs["has-slug"])
	assert.Equal(t, "true", attrs["is-auto-syncing"])
	assert.NotContains(t, attrs, "has-is-auto-syncing")
}

func TestCodec_RoundTrip(t *testing.T) {
	inst := validInstance(t)
	app := models.App{ID: "app-1", URL: "http://127.0.0.1:5678"}
	svc := models.Service{ID: "svc-1", URL: "http://127.0.0.1:5679"}

	log := aol.Log{}
	log = aol.AppendRecord(log, inst, models.TypeInstance)
	log = aol.AppendRecord(log, app, models.TypeApp)
	log = aol.AppendRecord(log, svc, models.TypeService)

	decoded := aol.Decode(log, models.Constructors())
	require.Len(t, decoded[models.TypeInstance], 1)
	require.Len(t, decoded[models.TypeApp], 1)
	require.Len(t, decoded[models.TypeService], 1)

	assert.Equal(t, inst, decoded[models.TypeInstance][0])
	assert.Equal(t, app, decoded[models.TypeApp][0])
	assert.Equal(t, svc, decoded[models.TypeService][0])
}

func TestDecode_RetractedEntityIsDropped(t *testing.T) {
	inst := validInstance(t)
	log := aol.AppendRecord(aol.Log{}, inst, models.TypeInstance)
	log = aol.Append(log, aol.RetractEntity(inst.ID))

	decoded := aol.Decode(log, models.Constructors())
	assert.Empty(t, decoded[models.TypeInstance])
}

func TestDecode_ReassertedEntityIsKept(t *testing.T) {
	inst := validInstance(t)
	log := aol.AppendRecord(aol.Log{}, inst, models.TypeInstance)
	log = aol.Append(log, aol.RetractEntity(inst.ID))
	log = aol.Append(log, aol.FiatEntity(inst.ID))

	decoded := aol.Decode(log, models.Constructors())
	require.Len(t, decoded[models.TypeInstance], 1)
}

func TestDecode_InvalidEntityIsDropped(t *testing.T) {
	log := aol.Log{}
	log = aol.Append(log, aol.FiatEntity("bad-1"))
	log = aol.Append(log, aol.FiatAttribute("bad-1", aol.IsAAttr, models.TypeInstance))
	// Slug violates the character-set validator.
	log = aol.Append(log, aol.FiatAttribute("bad-1", "has-slug", "Not A Slug!"))

	decoded := aol.Decode(log, models.Constructors())
	assert.Empty(t, decoded[models.TypeInstance])
}

func TestDecode_UnknownTypeIsDropped(t *testing.T) {
	log := aol.Log{}
	log = aol.Append(log, aol.FiatEntity("mystery-1"))
	log = aol.Append(log, aol.FiatAttribute("mystery-1", aol.IsAAttr, "mystery"))

	decoded := aol.Decode(log, models.Constructors())
	for tag, records := range decoded {
		assert.Empty(t, records, "type %s", tag)
	}
}

func TestDecode_LaterFactsWin(t *testing.T) {
	inst := validInstance(t)
	log := aol.AppendRecord(aol.Log{}, inst, models.TypeInstance)
	log = aol.Append(log, aol.FiatAttribute(inst.ID, "has-name", "Renamed"))

	decoded := aol.Decode(log, models.Constructors())
	require.Len(t, decoded[models.TypeInstance], 1)
	got := decoded[models.TypeInstance][0].(models.Instance)
	assert.Equal(t, "Renamed", got.Name)
}
