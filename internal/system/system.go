package system

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"syscall"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/ivlev/story2video/internal/logger"
)

// InitResourceLimits поднимает лимит открытых файлов: сервер держит
// websocket-соединения и пайпы ffplay одновременно.
func InitResourceLimits() {
	var rLimit syscall.Rlimit
	err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		logger.Warn("failed to read open file limit", logger.ErrorField(err))
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	err = syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		logger.Warn("failed to raise open file limit", logger.ErrorField(err))
	} else {
		logger.Debug("open file limit raised", logger.Uint64("limit", rLimit.Cur))
	}
}

// LookupPlayer ищет ffplay. Пустой путь означает "ffplay" из PATH.
func LookupPlayer(path string) (string, error) {
	if path == "" {
		path = "ffplay"
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return "", fmt.Errorf("audio player %q not found: %w", path, err)
	}
	return resolved, nil
}

// MemoryReport - снимок памяти хоста и текущего процесса для отчёта о запуске.
type MemoryReport struct {
	TotalMB       uint64
	AvailableMB   uint64
	UsedPercent   float64
	ProcessRSSMB  uint64
	HeapAllocMB   uint64
	NumGoroutines int
}

const mb = 1024 * 1024

// ReadMemory собирает MemoryReport. Если gopsutil недоступен на платформе,
// заполняются только поля рантайма Go.
func ReadMemory() MemoryReport {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	report := MemoryReport{
		HeapAllocMB:   ms.HeapAlloc / mb,
		NumGoroutines: runtime.NumGoroutine(),
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		report.TotalMB = vm.Total / mb
		report.AvailableMB = vm.Available / mb
		report.UsedPercent = vm.UsedPercent
	} else {
		logger.Debug("host memory unavailable", logger.ErrorField(err))
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if info, err := proc.MemoryInfo(); err == nil {
			report.ProcessRSSMB = info.RSS / mb
		}
	}
	return report
}

func (r MemoryReport) String() string {
	return fmt.Sprintf("host %d/%d MB free (%.1f%% used), process RSS %d MB, heap %d MB, goroutines %d",
		r.AvailableMB, r.TotalMB, r.UsedPercent, r.ProcessRSSMB, r.HeapAllocMB, r.NumGoroutines)
}
