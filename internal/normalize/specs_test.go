package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSpecs_FullLaptopTitle(t *testing.T) {
	specs := ParseSpecs("Dell Latitude 7420 Laptop i7-1185G7 16GB RAM 512GB SSD")

	assert.Equal(t, "Dell", specs.Manufacturer)
	assert.Equal(t, "Latitude 7420", specs.ModelNumber)
	assert.Equal(t, "i7-1185G7", specs.CPUModel)
	assert.Equal(t, 16, specs.RAMGB)
	assert.Equal(t, 512, specs.StorageGB)
}

func TestParseSpecs_ThinkPadWithTerabyteStorage(t *testing.T) {
	specs := ParseSpecs("Lenovo ThinkPad T14s Core i5 10210U 8GB DDR4 1TB NVMe")

	assert.Equal(t, "Lenovo", specs.Manufacturer)
	assert.Equal(t, "ThinkPad T14s", specs.ModelNumber)
	assert.Equal(t, "i5-10210U", specs.CPUModel)
	assert.Equal(t, 8, specs.RAMGB)
	assert.Equal(t, 1000, specs.StorageGB)
}

func TestParseSpecs_Ryzen(t *testing.T) {
	specs := ParseSpecs("Custom Desktop AMD Ryzen 7 5800X 32GB RAM")

	assert.Equal(t, "Ryzen-7-5800X", specs.CPUModel)
	assert.Equal(t, 32, specs.RAMGB)
}

func TestParseSpecs_AppleSilicon(t *testing.T) {
	specs := ParseSpecs("Apple MacBook Pro 14 M2 Pro 16GB Memory")

	assert.Equal(t, "Apple", specs.Manufacturer)
	assert.Equal(t, "MacBook Pro 14", specs.ModelNumber)
	assert.Equal(t, 16, specs.RAMGB)
}

func TestParseSpecs_NoMatchLeavesZeroValues(t *testing.T) {
	specs := ParseSpecs("Vintage mechanical keyboard, great clicky feel")

	assert.Empty(t, specs.Manufacturer)
	assert.Empty(t, specs.ModelNumber)
	assert.Empty(t, specs.CPUModel)
	assert.Zero(t, specs.RAMGB)
	assert.Zero(t, specs.StorageGB)
}

func TestParseSpecs_CaseInsensitiveCPU(t *testing.T) {
	specs := ParseSpecs("DELL LAPTOP INTEL CORE I7 8650U 8GB RAM")

	assert.Equal(t, "i7-8650U", specs.CPUModel)
}
