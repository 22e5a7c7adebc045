package hardware

import (
	"fmt"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// GPUInfo describes one installed GPU.
type GPUInfo struct {
	Index          int    `json:"index"`
	Name           string `json:"name"`
	UUID           string `json:"uuid"`
	MemoryTotalMiB uint64 `json:"memory_total_mib"`
}

// GPUSample is a point-in-time reading used by the monitor and status views.
type GPUSample struct {
	Index          int     `json:"index"`
	Name           string  `json:"name"`
	UtilizationPct uint32  `json:"utilization_pct"`
	MemoryUsedMiB  uint64  `json:"memory_used_mib"`
	MemoryTotalMiB uint64  `json:"memory_total_mib"`
	TemperatureC   uint32  `json:"temperature_c"`
	PowerDrawW     float64 `json:"power_draw_w"`
	FanSpeedPct    uint32  `json:"fan_speed_pct,omitempty"`
}

// GetGpuCount returns the number of available NVIDIA GPUs on the host system.
// It initializes the NVML library, queries the device count, and properly shuts down the library.
// Returns the GPU count and any error encountered during the process.
func GetGpuCount() (int, error) {
	ret := nvml.Init()
	if ret != nvml.SUCCESS {
		return 0, fmt.Errorf("failed to initialize NVML: %v", nvml.ErrorString(ret))
	}

	// Ensure proper cleanup of NVML resources
	defer func() {
		if shutdownRet := nvml.Shutdown(); shutdownRet != nvml.SUCCESS {
			// Log shutdown error, but don't override the main error
			fmt.Printf("Warning: failed to shutdown NVML: %v\n", nvml.ErrorString(shutdownRet))
		}
	}()

	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		return 0, fmt.Errorf("failed to get device count: %v", nvml.ErrorString(ret))
	}

	return count, nil
}

// GetGpuInfo returns identifying information for all available NVIDIA GPUs.
func GetGpuInfo() ([]GPUInfo, error) {
	ret := nvml.Init()
	if ret != nvml.SUCCESS {
		return nil, fmt.Errorf("failed to initialize NVML: %v", nvml.ErrorString(ret))
	}
	defer func() {
		if shutdownRet := nvml.Shutdown(); shutdownRet != nvml.SUCCESS {
			fmt.Printf("Warning: failed to shutdown NVML in GetGpuInfo: %v\n", nvml.ErrorString(shutdownRet))
		}
	}()

	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		return nil, fmt.Errorf("failed to get device count: %v", nvml.ErrorString(ret))
	}

	var infos []GPUInfo
	for i := 0; i < count; i++ {
		device, ret := nvml.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			return nil, fmt.Errorf("failed to get device handle for GPU %d: %v", i, nvml.ErrorString(ret))
		}

		name, ret := device.GetName()
		if ret != nvml.SUCCESS {
			return nil, fmt.Errorf("failed to get device name for GPU %d: %v", i, nvml.ErrorString(ret))
		}

		uuid, ret := device.GetUUID()
		if ret != nvml.SUCCESS {
			return nil, fmt.Errorf("failed to get UUID for GPU %d: %v", i, nvml.ErrorString(ret))
		}

		mem, ret := device.GetMemoryInfo()
		if ret != nvml.SUCCESS {
			return nil, fmt.Errorf("failed to get memory info for GPU %d: %v", i, nvml.ErrorString(ret))
		}

		infos = append(infos, GPUInfo{
			Index:          i,
			Name:           name,
			UUID:           uuid,
			MemoryTotalMiB: mem.Total / (1024 * 1024),
		})
	}

	return infos, nil
}

// SampleGpus reads utilization, memory, temperature and power for every GPU.
// Fan speed is best-effort: datacenter boards without fans report an error,
// which leaves the field at zero.
func SampleGpus() ([]GPUSample, error) {
	ret := nvml.Init()
	if ret != nvml.SUCCESS {
		return nil, fmt.Errorf("failed to initialize NVML: %v", nvml.ErrorString(ret))
	}
	defer func() {
		if shutdownRet := nvml.Shutdown(); shutdownRet != nvml.SUCCESS {
			fmt.Printf("Warning: failed to shutdown NVML in SampleGpus: %v\n", nvml.ErrorString(shutdownRet))
		}
	}()

	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		return nil, fmt.Errorf("failed to get device count: %v", nvml.ErrorString(ret))
	}

	var samples []GPUSample
	for i := 0; i < count; i++ {
		device, ret := nvml.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			return nil, fmt.Errorf("failed to get device handle for GPU %d: %v", i, nvml.ErrorString(ret))
		}

		sample := GPUSample{Index: i}

		if name, ret := device.GetName(); ret == nvml.SUCCESS {
			sample.Name = name
		}

		util, ret := device.GetUtilizationRates()
		if ret != nvml.SUCCESS {
			return nil, fmt.Errorf("failed to get utilization for GPU %d: %v", i, nvml.ErrorString(ret))
		}
		sample.UtilizationPct = util.Gpu

		mem, ret := device.GetMemoryInfo()
		if ret != nvml.SUCCESS {
			return nil, fmt.Errorf("failed to get memory info for GPU %d: %v", i, nvml.ErrorString(ret))
		}
		sample.MemoryUsedMiB = mem.Used / (1024 * 1024)
		sample.MemoryTotalMiB = mem.Total / (1024 * 1024)

		temp, ret := device.GetTemperature(nvml.TEMPERATURE_GPU)
		if ret != nvml.SUCCESS {
			return nil, fmt.Errorf("failed to get temperature for GPU %d: %v", i, nvml.ErrorString(ret))
		}
		sample.TemperatureC = temp

		power, ret := device.GetPowerUsage()
		if ret != nvml.SUCCESS {
			return nil, fmt.Errorf("failed to get power usage for GPU %d: %v", i, nvml.ErrorString(ret))
		}
		sample.PowerDrawW = float64(power) / 1000.0

		if fan, ret := device.GetFanSpeed(); ret == nvml.SUCCESS {
			sample.FanSpeedPct = fan
		}

		samples = append(samples, sample)
	}

	return samples, nil
}

// DriverVersions returns the NVIDIA driver version and the CUDA version the
// driver supports.
func DriverVersions() (string, string, error) {
	ret := nvml.Init()
	if ret != nvml.SUCCESS {
		return "", "", fmt.Errorf("failed to initialize NVML: %v", nvml.ErrorString(ret))
	}
	defer func() {
		if shutdownRet := nvml.Shutdown(); shutdownRet != nvml.SUCCESS {
			fmt.Printf("Warning: failed to shutdown NVML in DriverVersions: %v\n", nvml.ErrorString(shutdownRet))
		}
	}()

	driver, ret := nvml.SystemGetDriverVersion()
	if ret != nvml.SUCCESS {
		return "", "", fmt.Errorf("failed to get driver version: %v", nvml.ErrorString(ret))
	}

	cudaInt, ret := nvml.SystemGetCudaDriverVersion()
	if ret != nvml.SUCCESS {
		return driver, "", fmt.Errorf("failed to get CUDA version: %v", nvml.ErrorString(ret))
	}
	cuda := fmt.Sprintf("%d.%d", cudaInt/1000, (cudaInt%1000)/10)

	return driver, cuda, nil
}
