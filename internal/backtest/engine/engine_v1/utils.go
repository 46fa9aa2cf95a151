package engine

import (
	"fmt"
	"path/filepath"
	"strings"
)

// getResultFolder lays results out as
// <results>/<config name>/[<start>_<end>/][<resample>/]<data file>.
func getResultFolder(configName string, dataPath string, b *BacktestEngineV1) string {
	configFolder := filepath.Join(b.resultsFolder, filepath.Base(configName))

	// Create data folder with time range if specified
	var dataFolder string

	if b.config.StartTime.IsSome() || b.config.EndTime.IsSome() {
		startTimeStr := "all"
		endTimeStr := "all"

		if b.config.StartTime.IsSome() {
			startTimeStr = b.config.StartTime.Unwrap().Format("20060102")
		}

		if b.config.EndTime.IsSome() {
			endTimeStr = b.config.EndTime.Unwrap().Format("20060102")
		}

		dataFolder = filepath.Join(configFolder, fmt.Sprintf("%s_%s", startTimeStr, endTimeStr))
	} else {
		dataFolder = configFolder
	}

	if b.config.Resample != "" {
		dataFolder = filepath.Join(dataFolder, string(b.config.Resample))
	}

	dataFileName := strings.TrimSuffix(filepath.Base(dataPath), filepath.Ext(dataPath))

	return filepath.Join(dataFolder, dataFileName)
}
