package status_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/speechdesk/speechdesk/internal/status"
)

func TestQueryWithNoDaemonsRunningReportsStopped(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", dir)

	report := status.Query()
	assert.Equal(t, "off", report.Alt)
	assert.Contains(t, report.Class, "stopped")
}
