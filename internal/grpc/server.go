package grpc

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Belphemur/SubTranslate/internal/broadcast"
	"github.com/Belphemur/SubTranslate/internal/config"
	"github.com/Belphemur/SubTranslate/internal/matcher"
	"github.com/Belphemur/SubTranslate/internal/models"
	"github.com/Belphemur/SubTranslate/internal/services"
)

// SettingsSource provides the current runtime settings.
type SettingsSource interface {
	Get() config.Settings
}

// Dependencies are the services exposed over gRPC.
type Dependencies struct {
	Jobs     services.JobService
	Settings SettingsSource
	Events   *broadcast.Broadcaster
}

// server implements TranslationServiceServer
type server struct {
	deps   Dependencies
	logger zerolog.Logger
}

// NewServer creates a new gRPC server instance
func NewServer(deps Dependencies) TranslationServiceServer {
	return &server{
		deps:   deps,
		logger: config.GetLogger(),
	}
}

// MatchFiles implements TranslationServiceServer.MatchFiles
func (s *server) MatchFiles(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	subtitles, bad := stringList(req, "subtitles")
	if bad != nil {
		return nil, invalidArgument("invalid subtitles", bad)
	}
	videos, bad := stringList(req, "videos")
	if bad != nil {
		return nil, invalidArgument("invalid videos", bad)
	}
	s.logger.Debug().Int("subtitles", len(subtitles)).Int("videos", len(videos)).Msg("MatchFiles called")

	resp, err := convertMatchesToStruct(matcher.Match(subtitles, videos))
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode matches")
		return nil, status.Errorf(codes.Internal, "failed to encode matches: %v", err)
	}
	return resp, nil
}

// translateRequest is the decoded TranslateFiles request.
type translateRequest struct {
	SelectedFiles []models.FilePair `json:"selected_files"`
	config.SettingsPatch
}

// TranslateFiles implements TranslationServiceServer.TranslateFiles
func (s *server) TranslateFiles(req *structpb.Struct, stream grpc.ServerStream) error {
	var body translateRequest
	if err := fromStruct(req, &body); err != nil {
		return invalidArgument("malformed request: " + err.Error())
	}
	if len(body.SelectedFiles) == 0 {
		return invalidArgument("no files selected", &errdetails.BadRequest_FieldViolation{
			Field:       "selected_files",
			Description: "at least one file is required",
		})
	}

	ctx := stream.Context()
	settings := s.deps.Settings.Get().Apply(body.SettingsPatch)
	jobID, results := s.deps.Jobs.StreamTranslateFiles(ctx, services.TranslateRequest{
		Files:    body.SelectedFiles,
		Settings: settings,
	})
	s.logger.Debug().Str("job_id", jobID).Int("files", len(body.SelectedFiles)).Msg("TranslateFiles called")

	for r := range results {
		if r.Err != nil {
			if errors.Is(r.Err, context.Canceled) || errors.Is(r.Err, context.DeadlineExceeded) {
				return status.FromContextError(r.Err).Err()
			}
			return status.Errorf(codes.Internal, "translation job %s failed: %v", jobID, r.Err)
		}
		msg, err := toStruct(r.Value)
		if err != nil {
			return status.Errorf(codes.Internal, "failed to encode result: %v", err)
		}
		if err := stream.SendMsg(msg); err != nil {
			return err
		}
	}
	return nil
}

// StreamEvents implements TranslationServiceServer.StreamEvents
func (s *server) StreamEvents(_ *emptypb.Empty, stream grpc.ServerStream) error {
	sub := s.deps.Events.Subscribe()
	defer s.deps.Events.Unsubscribe(sub)
	s.logger.Debug().Msg("StreamEvents subscribed")

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-sub.C:
			if !ok {
				return nil
			}
			msg, err := toStruct(e)
			if err != nil {
				s.logger.Warn().Err(err).Str("type", string(e.Type)).Msg("Skipping event that cannot be encoded")
				continue
			}
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		}
	}
}
