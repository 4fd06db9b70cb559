package docmap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ingesterr "github.com/loamsearch/ingest/internal/errors"
)

func testConfig() Config {
	return Config{
		Fields: []Field{
			{Name: "body", Type: FieldTypeText, Store: true},
			{Name: "severity", Type: FieldTypeKeyword},
			{Name: "ts", Type: FieldTypeDatetime},
		},
		TimestampField: "ts",
	}
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, testConfig().Validate())

	t.Run("no fields", func(t *testing.T) {
		assert.Error(t, Config{}.Validate())
	})

	t.Run("duplicate field", func(t *testing.T) {
		cfg := Config{Fields: []Field{
			{Name: "a", Type: FieldTypeText},
			{Name: "a", Type: FieldTypeKeyword},
		}}
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown type", func(t *testing.T) {
		cfg := Config{Fields: []Field{{Name: "a", Type: "float"}}}
		assert.Error(t, cfg.Validate())
	})

	t.Run("undeclared timestamp field", func(t *testing.T) {
		cfg := Config{
			Fields:         []Field{{Name: "a", Type: FieldTypeText}},
			TimestampField: "ts",
		}
		assert.Error(t, cfg.Validate())
	})

	t.Run("timestamp field must be numeric", func(t *testing.T) {
		cfg := Config{
			Fields:         []Field{{Name: "ts", Type: FieldTypeText}},
			TimestampField: "ts",
		}
		assert.Error(t, cfg.Validate())
	})
}

func TestJSONMapper_DocFromJSON(t *testing.T) {
	mapper, err := NewJSONMapper(testConfig())
	require.NoError(t, err)

	doc, err := mapper.DocFromJSON([]byte(`{"_id":"doc-1","body":"disk failing","severity":"warn","ts":1700000000000}`))
	require.NoError(t, err)

	assert.Equal(t, "doc-1", doc.ID)
	assert.Equal(t, "disk failing", doc.Fields["body"])
	assert.Equal(t, "warn", doc.Fields["severity"])

	ts, ok := doc.Timestamp("ts")
	require.True(t, ok)
	assert.Equal(t, int64(1700000000000), ts)
}

func TestJSONMapper_DocFromJSON_RFC3339Timestamp(t *testing.T) {
	mapper, err := NewJSONMapper(testConfig())
	require.NoError(t, err)

	doc, err := mapper.DocFromJSON([]byte(`{"body":"ok","ts":"2023-11-14T22:13:20Z"}`))
	require.NoError(t, err)

	want := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC).UnixMilli()
	ts, ok := doc.Timestamp("ts")
	require.True(t, ok)
	assert.Equal(t, want, ts)
}

func TestJSONMapper_DocFromJSON_GeneratesIDWhenMissing(t *testing.T) {
	mapper, err := NewJSONMapper(testConfig())
	require.NoError(t, err)

	doc, err := mapper.DocFromJSON([]byte(`{"body":"anonymous"}`))
	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)
}

func TestJSONMapper_DocFromJSON_MalformedPayload(t *testing.T) {
	mapper, err := NewJSONMapper(testConfig())
	require.NoError(t, err)

	_, err = mapper.DocFromJSON([]byte(`{not json`))
	require.Error(t, err)
	assert.Equal(t, ingesterr.ErrCodeDocParse, ingesterr.GetCode(err))
	assert.False(t, ingesterr.IsFatal(err))
}

func TestJSONMapper_DocFromJSON_BadTimestampType(t *testing.T) {
	mapper, err := NewJSONMapper(testConfig())
	require.NoError(t, err)

	_, err = mapper.DocFromJSON([]byte(`{"body":"x","ts":true}`))
	require.Error(t, err)
	assert.Equal(t, ingesterr.ErrCodeTimestampType, ingesterr.GetCode(err))
}

func TestJSONMapper_DocFromJSON_DropsUndeclaredFields(t *testing.T) {
	mapper, err := NewJSONMapper(testConfig())
	require.NoError(t, err)

	doc, err := mapper.DocFromJSON([]byte(`{"body":"x","extra":"dropped"}`))
	require.NoError(t, err)
	_, present := doc.Fields["extra"]
	assert.False(t, present)
}

func TestJSONMapper_TimestampField(t *testing.T) {
	mapper, err := NewJSONMapper(testConfig())
	require.NoError(t, err)

	name, ok := mapper.TimestampField()
	assert.True(t, ok)
	assert.Equal(t, "ts", name)

	cfg := testConfig()
	cfg.TimestampField = ""
	noTS, err := NewJSONMapper(cfg)
	require.NoError(t, err)
	_, ok = noTS.TimestampField()
	assert.False(t, ok)
}

func TestJSONMapper_SchemaIsUsableByBleve(t *testing.T) {
	mapper, err := NewJSONMapper(testConfig())
	require.NoError(t, err)
	require.NoError(t, mapper.Schema().Validate())
}
