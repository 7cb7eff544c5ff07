package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/backplane/pkg/contract"
	"github.com/Mindburn-Labs/backplane/pkg/dialect"
)

func manifest() contract.CapabilityManifest {
	return contract.CapabilityManifest{
		contract.CapStreaming:  contract.Native(),
		contract.CapToolUse:    contract.Emulated(),
		contract.CapImageInput: contract.Restricted("tenant policy"),
		contract.CapMcpServer:  contract.Unsupported(),
	}
}

func reqs(entries ...contract.RequiredCapability) contract.Requirements {
	return contract.Requirements{Required: entries}
}

func TestNegotiateBuckets(t *testing.T) {
	result := Negotiate(manifest(), reqs(
		contract.RequiredCapability{Capability: contract.CapStreaming, MinSupport: contract.MinNative},
		contract.RequiredCapability{Capability: contract.CapToolUse, MinSupport: contract.MinEmulated},
		contract.RequiredCapability{Capability: contract.CapImageInput, MinSupport: contract.MinEmulated},
		contract.RequiredCapability{Capability: contract.CapMcpServer, MinSupport: contract.MinEmulated},
	))
	assert.Equal(t, []contract.Capability{contract.CapStreaming}, result.Native)
	assert.ElementsMatch(t,
		[]contract.Capability{contract.CapToolUse, contract.CapImageInput},
		result.Emulatable)
	assert.Equal(t, []contract.Capability{contract.CapMcpServer}, result.Unsupported)
	assert.False(t, result.IsCompatible())
}

func TestNegotiateNativeMinRejectsEmulated(t *testing.T) {
	result := Negotiate(manifest(), reqs(
		contract.RequiredCapability{Capability: contract.CapToolUse, MinSupport: contract.MinNative},
	))
	assert.Empty(t, result.Native)
	assert.Empty(t, result.Emulatable)
	assert.Equal(t, []contract.Capability{contract.CapToolUse}, result.Unsupported)
}

func TestNegotiateAbsentCapabilityIsUnsupported(t *testing.T) {
	result := Negotiate(manifest(), reqs(
		contract.RequiredCapability{Capability: contract.CapLogprobs, MinSupport: contract.MinEmulated},
	))
	assert.Equal(t, []contract.Capability{contract.CapLogprobs}, result.Unsupported)
}

func TestNegotiateEmptyRequirementsIsCompatible(t *testing.T) {
	result := Negotiate(manifest(), reqs())
	assert.True(t, result.IsCompatible())
}

func TestCheckReportEntries(t *testing.T) {
	wo := contract.NewWorkOrder("task")
	wo.Requirements = reqs(
		contract.RequiredCapability{Capability: contract.CapStreaming, MinSupport: contract.MinNative},
		contract.RequiredCapability{Capability: contract.CapToolUse, MinSupport: contract.MinEmulated},
		contract.RequiredCapability{Capability: contract.CapImageInput, MinSupport: contract.MinEmulated},
		contract.RequiredCapability{Capability: contract.CapMcpServer, MinSupport: contract.MinEmulated},
	)

	report := Check(wo, manifest(), dialect.OpenAI, dialect.Claude)
	assert.Equal(t, dialect.OpenAI, report.Source)
	assert.Equal(t, dialect.Claude, report.Target)
	require.Len(t, report.Entries, 4)

	assert.Equal(t, SupportNative, report.Entries[0].Support.Kind)
	assert.Equal(t, SupportEmulated, report.Entries[1].Support.Kind)
	assert.Equal(t, SupportEmulated, report.Entries[2].Support.Kind)
	assert.Contains(t, report.Entries[2].Support.Detail, "tenant policy")
	assert.Equal(t, SupportUnsupported, report.Entries[3].Support.Kind)
	assert.NotEmpty(t, report.Entries[3].Support.Reason)

	assert.False(t, report.AllSatisfiable())
	assert.Equal(t, []contract.Capability{contract.CapMcpServer}, report.Unsupported())
}

func TestCheckAllSatisfiable(t *testing.T) {
	wo := contract.NewWorkOrder("task")
	wo.Requirements = reqs(
		contract.RequiredCapability{Capability: contract.CapStreaming, MinSupport: contract.MinNative},
	)
	report := Check(wo, manifest(), dialect.Abp, dialect.Mock)
	assert.True(t, report.AllSatisfiable())
	assert.Empty(t, report.Unsupported())
}
