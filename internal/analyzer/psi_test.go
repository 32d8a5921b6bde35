package analyzer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOracleWithoutKey(t *testing.T) {
	assert.Nil(t, NewOracle("", nil))
}

func TestOracleResponseToAudit(t *testing.T) {
	payload := `{
	  "loadingExperience": {
	    "metrics": {
	      "LARGEST_CONTENTFUL_PAINT_MS": {"percentile": 2400},
	      "CUMULATIVE_LAYOUT_SHIFT_SCORE": {"percentile": 8}
	    }
	  },
	  "lighthouseResult": {
	    "categories": {"performance": {"score": 0.87}},
	    "audits": {
	      "first-contentful-paint": {"title": "First Contentful Paint", "score": 0.95, "scoreDisplayMode": "numeric", "displayValue": "1.2 s"},
	      "render-blocking-resources": {"title": "Eliminate render-blocking resources", "score": 0.4, "scoreDisplayMode": "numeric", "displayValue": "Potential savings", "details": {"type": "opportunity", "overallSavingsMs": 450}},
	      "mainthread-work-breakdown": {"title": "Minimize main-thread work", "score": 0.3, "scoreDisplayMode": "numeric", "displayValue": "3.1 s", "details": {"type": "table"}},
	      "final-screenshot": {"title": "Final Screenshot", "score": 1, "scoreDisplayMode": "informative", "details": {"type": "screenshot"}}
	    }
	  }
	}`

	var raw oracleResponse
	require.NoError(t, json.Unmarshal([]byte(payload), &raw))

	audit := raw.toAudit()
	assert.Equal(t, 87, audit.Score)
	assert.Equal(t, 2400, audit.FieldData["LARGEST_CONTENTFUL_PAINT_MS"])
	assert.Equal(t, "1.2 s", audit.LabMetrics["first-contentful-paint"])

	require.Len(t, audit.Opportunities, 1)
	assert.Equal(t, "render-blocking-resources", audit.Opportunities[0].ID)
	assert.Equal(t, 450.0, audit.Opportunities[0].SavingsMs)

	require.Len(t, audit.Diagnostics, 1)
	assert.Equal(t, "mainthread-work-breakdown", audit.Diagnostics[0].ID)
}
