package exports

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsFixExport(t *testing.T) {
	assert.False(t, IsFixExport("orders.csv"))
	assert.True(t, IsFixExport("orders_fix.csv"))
	assert.True(t, IsFixExport("orders_fix"))
	assert.False(t, IsFixExport("fix_orders.csv"))
}

func TestBaseExportName(t *testing.T) {
	assert.Equal(t, "orders.csv", BaseExportName("orders_fix.csv"))
	assert.Equal(t, "orders.csv", BaseExportName("orders.csv"))
	assert.Equal(t, "orders", BaseExportName("orders_fix"))
	assert.Equal(t, "export_2024-03-01.csv", BaseExportName("export_2024-03-01_fix.csv"))
}
