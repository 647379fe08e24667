package merge

import (
	"time"

	"vidmerge/config"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// checkResources rejects a new job when the host lacks the headroom to run
// another encode. Probe failures only warn; the throttle must never turn a
// monitoring hiccup into a job rejection.
func checkResources(cfg *config.Config, scratchDir string, log zerolog.Logger) error {
	p, err := cpu.Percent(time.Second, false)
	if err != nil {
		log.Warn().Err(err).Msg("could not get CPU usage")
	} else if len(p) > 0 && p[0] > (100.0-cfg.ThrottleCPU) {
		return failf(KindResourceBusy,
			"not enough idle CPU: current usage %.2f%%, required idle %.2f%%", p[0], cfg.ThrottleCPU)
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		log.Warn().Err(err).Msg("could not get memory usage")
	} else if vm.Available < uint64(cfg.ThrottleFreeMem) {
		return failf(KindResourceBusy,
			"not enough free memory: available %d, required %d", vm.Available, cfg.ThrottleFreeMem)
	}

	d, err := disk.Usage(scratchDir)
	if err != nil {
		log.Warn().Str("dir", scratchDir).Err(err).Msg("could not get disk usage")
	} else if d.Free < uint64(cfg.ThrottleFreeDisk) {
		return failf(KindResourceBusy,
			"not enough free disk space: available %d, required %d", d.Free, cfg.ThrottleFreeDisk)
	}

	return nil
}
