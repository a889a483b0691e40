package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/civiclens/internal/core/domain"
	"github.com/samirrijal/civiclens/internal/pkg/exiftest"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAnalyze_NoClassify(t *testing.T) {
	path := exiftest.WithGPS(t, exiftest.FullGPS())

	out, err := execute(t, "analyze", "--no-classify", path)
	require.NoError(t, err)

	var rec domain.AnalysisRecord
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	require.NotNil(t, rec.GPSDateStamp)
	assert.Equal(t, "2023:05:14", *rec.GPSDateStamp)
	require.NotNil(t, rec.Location)
	assert.Equal(t, "https://www.google.com/maps?q=37.422,-122.084", *rec.Location)
	assert.Nil(t, rec.Classification)
}

func TestAnalyze_PlainImagePrintsNulls(t *testing.T) {
	path := exiftest.WriteFile(t, "plain.jpg", exiftest.PlainJPEG())

	out, err := execute(t, "analyze", "--no-classify", path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"GPSDateStamp":null,"Classification":null,"Location":null}`, out)
}

func TestAnalyze_WritesOutputFile(t *testing.T) {
	path := exiftest.WithGPS(t, exiftest.FullGPS())
	output := filepath.Join(t.TempDir(), "out", "output.json")

	stdout, err := execute(t, "analyze", "--no-classify", "--output", output, path)
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.JSONEq(t, stdout, string(data))
}

func TestAnalyze_MissingImage(t *testing.T) {
	_, err := execute(t, "analyze", "--no-classify", filepath.Join(t.TempDir(), "nope.jpg"))
	assert.Error(t, err)
}

func TestAnalyze_RequiresOneArg(t *testing.T) {
	_, err := execute(t, "analyze")
	assert.Error(t, err)
}

func TestConfig_MasksSecrets(t *testing.T) {
	t.Setenv("CIVICLENS_DATABASE_PASSWORD", "hunter2")
	t.Setenv("CIVICLENS_CLASSIFIER_API_KEY", "sk-secret")

	out, err := execute(t, "config")
	require.NoError(t, err)
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "sk-secret")
	assert.Contains(t, out, "****")
	assert.Contains(t, out, "civiclens-reclassify")
}
