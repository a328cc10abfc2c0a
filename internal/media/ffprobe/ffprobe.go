package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Duration  string `json:"duration"`
	BitRate   string `json:"bit_rate"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// Summary is the flattened view the pipeline records on a job.
type Summary struct {
	DurationSeconds float64
	SizeBytes       int64
	Width           int
	Height          int
	Codec           string
	Format          string
	Bitrate         int64
}

// Inspect executes ffprobe against a local path or URL and decodes the JSON
// response.
func Inspect(ctx context.Context, binary string, target string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	target = strings.TrimSpace(target)
	if target == "" {
		return Result{}, errors.New("ffprobe inspect: empty target")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", target)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return Result{}, fmt.Errorf("ffprobe inspect: %w", err)
	}
	return Parse(output)
}

// Parse decodes ffprobe JSON output.
func Parse(data []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// PrimaryVideo returns the first video stream.
func (r Result) PrimaryVideo() (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			return stream, true
		}
	}
	return Stream{}, false
}

// VideoStreamCount returns the number of video streams discovered.
func (r Result) VideoStreamCount() int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			count++
		}
	}
	return count
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	return nonNegative(parseFloat(r.Format.Duration))
}

// SizeBytes returns the reported container size in bytes, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	return int64(nonNegative(parseFloat(r.Format.Size)))
}

// BitRate returns the container bitrate in bits per second, falling back to
// the primary video stream's rate.
func (r Result) BitRate() int64 {
	if rate := nonNegative(parseFloat(r.Format.BitRate)); rate > 0 {
		return int64(rate)
	}
	if video, ok := r.PrimaryVideo(); ok {
		return int64(nonNegative(parseFloat(video.BitRate)))
	}
	return 0
}

// Summarize flattens the result. Format names like "mov,mp4,m4a" keep only
// the first entry.
func (r Result) Summarize() Summary {
	summary := Summary{
		DurationSeconds: r.DurationSeconds(),
		SizeBytes:       r.SizeBytes(),
		Bitrate:         r.BitRate(),
	}
	if name, _, _ := strings.Cut(r.Format.FormatName, ","); name != "" {
		summary.Format = strings.TrimSpace(name)
	}
	if video, ok := r.PrimaryVideo(); ok {
		summary.Width = video.Width
		summary.Height = video.Height
		summary.Codec = video.CodecName
	}
	return summary
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
