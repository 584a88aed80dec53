package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromCarriesMergedFields(t *testing.T) {
	var buf bytes.Buffer
	Setup("debug", "json", &buf)
	ctx := WithFields(context.Background(), logrus.Fields{"request_id": "r1"})
	ctx = WithFields(ctx, logrus.Fields{"mode": "ocr"})

	From(ctx).Info("converted")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "r1", line["request_id"])
	assert.Equal(t, "ocr", line["mode"])
	assert.Equal(t, "converted", line["msg"])
}

func TestSetupFallsBackToInfo(t *testing.T) {
	Setup("nonsense", "text", &bytes.Buffer{})
	assert.Equal(t, logrus.InfoLevel, Logger().GetLevel())
}
