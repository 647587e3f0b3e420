package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/loopcast/internal/api/models"
	"github.com/smazurov/loopcast/internal/metrics"
	"github.com/smazurov/loopcast/internal/session"
)

// registerStreamRoutes registers all stream-related endpoints
func (s *Server) registerStreamRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "start-stream",
		Method:      http.MethodPost,
		Path:        "/start-stream",
		Summary:     "Start Stream",
		Description: "Start looping a video file to the RTMP destination of a stream key",
		Tags:        []string{"streams"},
		Errors:      []int{400, 401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.StartStreamRequest) (*models.MessageResponse, error) {
		body := input.Body
		if strings.TrimSpace(body.StreamKey) == "" || strings.TrimSpace(body.VideoPath) == "" {
			return nil, huma.Error400BadRequest("Missing stream_key or video_path")
		}

		params := s.encoding.Get().WithOverrides(body.Overrides())
		info, err := s.manager.Start(ctx, session.StartRequest{
			Key:         body.StreamKey,
			VideoSource: body.VideoPath,
			Params:      params,
		})
		if err != nil {
			return nil, mapSessionError(err)
		}

		return &models.MessageResponse{
			Body: models.MessageData{
				Message: fmt.Sprintf("Streaming for %s started successfully!", info.Key),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "stop-stream",
		Method:      http.MethodPost,
		Path:        "/stop-stream",
		Summary:     "Stop Stream",
		Description: "Stop the session of a stream key and wait for its transcoder to exit",
		Tags:        []string{"streams"},
		Errors:      []int{400, 401, 500, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.StopStreamRequest) (*models.MessageResponse, error) {
		key := input.Body.StreamKey
		if strings.TrimSpace(key) == "" {
			return nil, huma.Error400BadRequest("Missing stream_key")
		}

		if err := s.manager.Stop(ctx, key); err != nil {
			return nil, mapSessionError(err)
		}

		return &models.MessageResponse{
			Body: models.MessageData{
				Message: fmt.Sprintf("Streaming for %s stopped successfully!", key),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-streams",
		Method:      http.MethodGet,
		Path:        "/api/streams",
		Summary:     "List Streams",
		Description: "List every live session with its encoding params and transcoder progress",
		Tags:        []string{"streams"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.StreamListResponse, error) {
		now := time.Now()
		infos := s.manager.List()

		streams := make([]models.StreamData, len(infos))
		for i, info := range infos {
			streams[i] = toStreamData(info, now)
		}

		return &models.StreamListResponse{
			Body: models.StreamListData{
				Streams: streams,
				Count:   len(streams),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-stream",
		Method:      http.MethodGet,
		Path:        "/api/streams/{stream_key}",
		Summary:     "Get Stream",
		Description: "Get the live session of a stream key",
		Tags:        []string{"streams"},
		Errors:      []int{401, 404},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.StreamKeyInput) (*models.StreamResponse, error) {
		info, ok := s.manager.Get(input.StreamKey)
		if !ok {
			return nil, huma.Error404NotFound(fmt.Sprintf("Stream %s is not running", input.StreamKey))
		}
		return &models.StreamResponse{Body: toStreamData(info, time.Now())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-encoding-defaults",
		Method:      http.MethodGet,
		Path:        "/api/encoding/defaults",
		Summary:     "Encoding Defaults",
		Description: "Get the encoding params new sessions start from",
		Tags:        []string{"streams"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.EncodingDefaultsResponse, error) {
		return &models.EncodingDefaultsResponse{Body: s.encoding.Get()}, nil
	})
}

func toStreamData(info session.Info, now time.Time) models.StreamData {
	return models.StreamData{
		ID:             info.ID,
		StreamKey:      info.Key,
		State:          string(info.State),
		VideoPath:      info.VideoSource,
		DestinationURL: info.DestinationURL,
		PID:            info.PID,
		StartedAt:      info.StartedAt,
		UptimeSeconds:  info.Uptime(now).Seconds(),
		Params:         info.Params,
		Metrics:        metrics.GetFFmpegMetrics(info.Key),
	}
}
