package workers

import (
	"os"
	"runtime"
	"strconv"
)

// EnvOverride names the environment variable that pins the pool size.
const EnvOverride = "JPEGFIT_WORKERS"

// Default is the pool size used when none is configured: one conversion per
// CPU, as reported by GOMAXPROCS so container limits apply. A positive
// JPEGFIT_WORKERS value replaces it.
func Default() int {
	if override := os.Getenv(EnvOverride); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			return count
		}
	}
	return max(runtime.GOMAXPROCS(0), 1)
}

// ForFiles sizes the pool for a batch of files. configured <= 0 asks for
// one worker per file; the pool never outnumbers the files.
func ForFiles(configured, files int) int {
	if files < 1 {
		return 0
	}
	if configured <= 0 || configured > files {
		return files
	}
	return configured
}

// EngineThreads splits the CPUs between the pool's workers for engines that
// thread a single conversion internally.
func EngineThreads(poolSize int) int {
	if poolSize < 1 {
		poolSize = 1
	}
	return max(runtime.GOMAXPROCS(0)/poolSize, 1)
}
