package config

import (
	"PoseAnomaly/internal/pose"
	"PoseAnomaly/pkg/model"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	ThresholdModeBatch      = "batch"
	ThresholdModeCalibrated = "calibrated"
)

// ScorerOptionsFromEnv reads ANOMALY_PERCENTILE and ANOMALY_THRESHOLD_MODE.
// The calibrated mode falls back to the batch percentile when the model
// ships no calibrated threshold.
func ScorerOptionsFromEnv(manifest model.Manifest, log *logrus.Logger) []pose.ScorerOption {
	var opts []pose.ScorerOption

	if raw := os.Getenv("ANOMALY_PERCENTILE"); raw != "" {
		p, err := strconv.ParseFloat(raw, 64)
		if err != nil || p <= 0 || p > 100 {
			log.Warnf("Ignoring ANOMALY_PERCENTILE=%q, using %.0f", raw, pose.DefaultPercentile)
		} else {
			opts = append(opts, pose.WithPercentile(p))
		}
	}

	mode := strings.ToLower(os.Getenv("ANOMALY_THRESHOLD_MODE"))
	switch mode {
	case "", ThresholdModeBatch:
	case ThresholdModeCalibrated:
		if manifest.CalibratedThreshold > 0 {
			opts = append(opts, pose.WithCalibratedThreshold(manifest.CalibratedThreshold))
			log.Infof("Using calibrated anomaly threshold %g", manifest.CalibratedThreshold)
		} else {
			log.Warn("Model has no calibrated threshold, falling back to the batch percentile")
		}
	default:
		log.Warnf("Unknown ANOMALY_THRESHOLD_MODE %q, using %s", mode, ThresholdModeBatch)
	}

	return opts
}
