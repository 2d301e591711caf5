package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTuning(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFullDocument(t *testing.T) {
	path := writeTuning(t, "tuning.json", `{
		"ranges": {
			"normal": {"min": 0.0, "max": 12.0, "default": 1.0},
			"macro": {"min": 3.0, "max": 15.0, "default": 4.0}
		},
		"speeds": {
			"normal": {
				"step_coarse": 1.0, "step_fine": 0.25, "contrast_ratio": 0.75,
				"pdaf_gain": -0.02, "pdaf_squelch": 0.125, "max_slew": 2.0,
				"pdaf_frames": 20, "dropout_frames": 6, "step_frames": 4
			}
		},
		"conf_epsilon": 8,
		"conf_thresh": 16,
		"conf_clip": 512,
		"skip_frames": 5,
		"map": [[0.0, 445.0], [15.0, 925.0]]
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.NotNil(t, cfg.Ranges)
	require.NotNil(t, cfg.Ranges.Normal)
	assert.Equal(t, 12.0, *cfg.Ranges.Normal.Max)
	assert.Nil(t, cfg.Ranges.Full)

	require.NotNil(t, cfg.Speeds)
	require.NotNil(t, cfg.Speeds.Normal)
	assert.Equal(t, -0.02, *cfg.Speeds.Normal.PdafGain)
	assert.Nil(t, cfg.Speeds.Fast)

	require.NotNil(t, cfg.ConfThresh)
	assert.Equal(t, uint32(16), *cfg.ConfThresh)
	assert.Len(t, cfg.Map, 2)
}

func TestLoadPartialDocument(t *testing.T) {
	path := writeTuning(t, "partial.json", `{"conf_thresh": 32}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Nil(t, cfg.Ranges)
	assert.Nil(t, cfg.Speeds)
	assert.Nil(t, cfg.ConfEpsilon)
	require.NotNil(t, cfg.ConfThresh)
	assert.Equal(t, uint32(32), *cfg.ConfThresh)
}

func TestLoadRejectsNonJSONExtension(t *testing.T) {
	path := writeTuning(t, "tuning.yaml", `{}`)
	_, err := Load(path)
	assert.ErrorContains(t, err, ".json extension")
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := writeTuning(t, "bad.json", `{"conf_thresh": `)
	_, err := Load(path)
	assert.ErrorContains(t, err, "parse")
}

func TestValidateRejectsInvertedRange(t *testing.T) {
	path := writeTuning(t, "range.json", `{"ranges": {"normal": {"min": 5.0, "max": 1.0}}}`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "exceeds")
}

func TestValidateRejectsBadContrastRatio(t *testing.T) {
	path := writeTuning(t, "speed.json", `{"speeds": {"normal": {"contrast_ratio": 1.5}}}`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "contrast_ratio")
}

func TestValidateRejectsUnorderedMap(t *testing.T) {
	path := writeTuning(t, "map.json", `{"map": [[5.0, 600.0], [2.0, 500.0]]}`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "strictly increasing")
}

func TestLoadShippedDefaults(t *testing.T) {
	cfg, err := Load("../../config/tuning.defaults.json")
	require.NoError(t, err)
	require.NotNil(t, cfg.Ranges)
	require.NotNil(t, cfg.Speeds)
	require.NotNil(t, cfg.Speeds.Fast)
	assert.Len(t, cfg.Map, 2)
}
