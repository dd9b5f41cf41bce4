package expectation

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSchema(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{name: "single", doc: `{"httpRequest":{"path":"/a"},"httpResponse":{"statusCode":200}}`},
		{name: "array", doc: `[{"httpForward":{"host":"example.com","port":443,"scheme":"HTTPS"}}]`},
		{name: "delay", doc: `{"httpResponse":{"delay":{"timeUnit":"SECONDS","value":1}}}`},
		{name: "status out of range", doc: `{"httpResponse":{"statusCode":700}}`, wantErr: "httpResponse.statusCode"},
		{name: "forward without host", doc: `{"httpForward":{"port":80}}`, wantErr: "httpForward"},
		{name: "negative times", doc: `{"times":{"remainingTimes":-1}}`, wantErr: "times.remainingTimes"},
		{name: "fractional priority", doc: `{"priority":3.5,"httpResponse":{"statusCode":200}}`, wantErr: "priority"},
		{name: "scalar", doc: `"nope"`, wantErr: "(root)"},
		{name: "malformed", doc: `{"httpRequest":`, wantErr: "invalid JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSchema([]byte(tt.doc))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var serr *SchemaError
			require.ErrorAs(t, err, &serr)
			assert.NotEmpty(t, serr.Problems)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateSchemaAcceptsEncodedExpectations(t *testing.T) {
	exps := []*Expectation{
		New(Request()).ThenRespond(Response(201).WithBody("ok")),
		New(Request()).ThenForward(&HTTPObjectCallback{ClientID: "c1", ResponseCallback: true}),
		New(Request()).WithTimes(Exactly(2)).ThenError(&HTTPError{DropConnection: true, ResponseBytes: []byte("x")}),
	}
	data, err := json.Marshal(exps)
	require.NoError(t, err)
	assert.NoError(t, ValidateSchema(data))
}

func TestLoadFileChecksSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("httpResponse:\n  statusCode: 9\n"), 0o600))

	_, err := LoadFile(path)
	var serr *SchemaError
	require.ErrorAs(t, err, &serr)
}

func TestLoadFilesGlob(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "b"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(`{"id":"first","httpResponse":{"statusCode":200}}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b", "c.yaml"), []byte("id: second\nhttpResponse:\n  statusCode: 201\n"), 0o600))

	exps, err := LoadFiles(filepath.Join(dir, "**", "*.{json,yaml}"))
	require.NoError(t, err)
	require.Len(t, exps, 2)
	assert.Equal(t, "first", exps[0].ID)
	assert.Equal(t, "second", exps[1].ID)

	files, err := ExpandFiles(filepath.Join(dir, "a.json"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.json")}, files)

	_, err = LoadFiles(filepath.Join(dir, "*.txt"))
	assert.Error(t, err)
}
