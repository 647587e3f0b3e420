// Package metrics provides Prometheus metrics for stream sessions and their
// transcoders.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ffmpegFPS = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "loopcast",
		Subsystem: "ffmpeg",
		Name:      "fps",
		Help:      "Current FFmpeg encoding FPS",
	}, []string{"stream_key"})

	ffmpegBitrate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "loopcast",
		Subsystem: "ffmpeg",
		Name:      "output_bitrate_kbits",
		Help:      "Current FFmpeg output bitrate in kbit/s",
	}, []string{"stream_key"})

	ffmpegDroppedFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "loopcast",
		Subsystem: "ffmpeg",
		Name:      "dropped_frames_total",
		Help:      "Total dropped frames",
	}, []string{"stream_key"})

	ffmpegDuplicateFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "loopcast",
		Subsystem: "ffmpeg",
		Name:      "duplicate_frames_total",
		Help:      "Total duplicate frames",
	}, []string{"stream_key"})

	ffmpegSpeed = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "loopcast",
		Subsystem: "ffmpeg",
		Name:      "processing_speed",
		Help:      "FFmpeg processing speed multiplier",
	}, []string{"stream_key"})

	// Local cache for the streams API.
	ffmpegCache   = make(map[string]*FFmpegStreamMetrics)
	ffmpegCacheMu sync.RWMutex
)

// FFmpegStreamMetrics holds current metric values for a stream.
type FFmpegStreamMetrics struct {
	FPS             float64 `json:"fps" doc:"Encoding frames per second"`
	BitrateKbits    float64 `json:"bitrate_kbits" doc:"Output bitrate in kbit/s"`
	DroppedFrames   float64 `json:"dropped_frames" doc:"Dropped frames"`
	DuplicateFrames float64 `json:"duplicate_frames" doc:"Duplicated frames"`
	Speed           float64 `json:"speed" doc:"Processing speed relative to realtime"`
}

// SetFFmpegFPS sets the current FPS for a stream.
func SetFFmpegFPS(streamKey string, fps float64) {
	ffmpegFPS.WithLabelValues(streamKey).Set(fps)
	updateCache(streamKey, func(m *FFmpegStreamMetrics) { m.FPS = fps })
}

// SetFFmpegBitrate sets the current output bitrate for a stream.
func SetFFmpegBitrate(streamKey string, kbits float64) {
	ffmpegBitrate.WithLabelValues(streamKey).Set(kbits)
	updateCache(streamKey, func(m *FFmpegStreamMetrics) { m.BitrateKbits = kbits })
}

// SetFFmpegDroppedFrames sets the dropped frames count for a stream.
func SetFFmpegDroppedFrames(streamKey string, count float64) {
	ffmpegDroppedFrames.WithLabelValues(streamKey).Set(count)
	updateCache(streamKey, func(m *FFmpegStreamMetrics) { m.DroppedFrames = count })
}

// SetFFmpegDuplicateFrames sets the duplicate frames count for a stream.
func SetFFmpegDuplicateFrames(streamKey string, count float64) {
	ffmpegDuplicateFrames.WithLabelValues(streamKey).Set(count)
	updateCache(streamKey, func(m *FFmpegStreamMetrics) { m.DuplicateFrames = count })
}

// SetFFmpegSpeed sets the processing speed for a stream.
func SetFFmpegSpeed(streamKey string, speed float64) {
	ffmpegSpeed.WithLabelValues(streamKey).Set(speed)
	updateCache(streamKey, func(m *FFmpegStreamMetrics) { m.Speed = speed })
}

// DeleteFFmpegMetrics removes all metrics for a stream.
func DeleteFFmpegMetrics(streamKey string) {
	ffmpegFPS.DeleteLabelValues(streamKey)
	ffmpegBitrate.DeleteLabelValues(streamKey)
	ffmpegDroppedFrames.DeleteLabelValues(streamKey)
	ffmpegDuplicateFrames.DeleteLabelValues(streamKey)
	ffmpegSpeed.DeleteLabelValues(streamKey)

	ffmpegCacheMu.Lock()
	delete(ffmpegCache, streamKey)
	ffmpegCacheMu.Unlock()
}

// GetFFmpegMetrics returns current metric values for a stream.
func GetFFmpegMetrics(streamKey string) *FFmpegStreamMetrics {
	ffmpegCacheMu.RLock()
	defer ffmpegCacheMu.RUnlock()
	if m, ok := ffmpegCache[streamKey]; ok {
		dup := *m
		return &dup
	}
	return nil
}

func updateCache(streamKey string, update func(*FFmpegStreamMetrics)) {
	ffmpegCacheMu.Lock()
	defer ffmpegCacheMu.Unlock()
	m, ok := ffmpegCache[streamKey]
	if !ok {
		m = &FFmpegStreamMetrics{}
		ffmpegCache[streamKey] = m
	}
	update(m)
}
