package grpc

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection/grpc_reflection_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Belphemur/SubTranslate/internal/broadcast"
	"github.com/Belphemur/SubTranslate/internal/config"
	"github.com/Belphemur/SubTranslate/internal/models"
	"github.com/Belphemur/SubTranslate/internal/services"
)

// mockJobs implements services.JobService for testing
type mockJobs struct {
	streamFunc func(ctx context.Context, req services.TranslateRequest) []models.StreamResult[models.FileResult]
}

func (m *mockJobs) TranslateFiles(ctx context.Context, req services.TranslateRequest) services.TranslateResponse {
	var out []models.FileResult
	for _, r := range m.streamFunc(ctx, req) {
		out = append(out, r.Value)
	}
	return services.TranslateResponse{JobID: "job", Results: out}
}

func (m *mockJobs) StreamTranslateFiles(ctx context.Context, req services.TranslateRequest) (string, <-chan models.StreamResult[models.FileResult]) {
	results := m.streamFunc(ctx, req)
	ch := make(chan models.StreamResult[models.FileResult], len(results))
	for _, r := range results {
		ch <- r
	}
	close(ch)
	return "job", ch
}

type staticSettings struct{ settings config.Settings }

func (s staticSettings) Get() config.Settings { return s.settings }

func testDependencies() Dependencies {
	settings := config.DefaultSettings()
	settings.APIKey = "key"
	return Dependencies{
		Jobs: &mockJobs{streamFunc: func(context.Context, services.TranslateRequest) []models.StreamResult[models.FileResult] {
			return nil
		}},
		Settings: staticSettings{settings},
		Events:   broadcast.New(10, 10),
	}
}

// startServer serves deps over an in-memory listener and returns a client connection.
func startServer(t *testing.T, deps Dependencies) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer(deps)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func openStream(ctx context.Context, t *testing.T, conn *grpc.ClientConn, method string, req any) grpc.ClientStream {
	t.Helper()
	var desc *grpc.StreamDesc
	for i := range ServiceDesc.Streams {
		if ServiceDesc.Streams[i].StreamName == method {
			desc = &ServiceDesc.Streams[i]
		}
	}
	stream, err := conn.NewStream(ctx, desc, "/"+ServiceName+"/"+method)
	if err != nil {
		t.Fatalf("NewStream(%s): %v", method, err)
	}
	if err := stream.SendMsg(req); err != nil {
		t.Fatalf("SendMsg: %v", err)
	}
	if err := stream.CloseSend(); err != nil {
		t.Fatalf("CloseSend: %v", err)
	}
	return stream
}

func TestNewGRPCServer_HealthCheck(t *testing.T) {
	conn := startServer(t, testDependencies())
	healthClient := grpc_health_v1.NewHealthClient(conn)

	for _, service := range []string{"", ServiceName} {
		resp, err := healthClient.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: service})
		if err != nil {
			t.Fatalf("Health check %q failed: %v", service, err)
		}
		if resp.Status != grpc_health_v1.HealthCheckResponse_SERVING {
			t.Errorf("Expected SERVING status for %q, got %v", service, resp.Status)
		}
	}
}

func TestNewGRPCServer_ReflectionEnabled(t *testing.T) {
	conn := startServer(t, testDependencies())

	reflectionClient := grpc_reflection_v1.NewServerReflectionClient(conn)
	stream, err := reflectionClient.ServerReflectionInfo(context.Background())
	if err != nil {
		t.Fatalf("Failed to create reflection stream: %v", err)
	}
	err = stream.Send(&grpc_reflection_v1.ServerReflectionRequest{
		MessageRequest: &grpc_reflection_v1.ServerReflectionRequest_ListServices{ListServices: ""},
	})
	if err != nil {
		t.Fatalf("Failed to send reflection request: %v", err)
	}
	resp, err := stream.Recv()
	if err != nil {
		t.Fatalf("Failed to receive reflection response: %v", err)
	}

	found := false
	for _, svc := range resp.GetListServicesResponse().GetService() {
		if svc.Name == ServiceName {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("Expected %s to be registered", ServiceName)
	}
}

func TestNewGRPCServer_CalledMultipleTimes(t *testing.T) {
	// sync.Once keeps the metrics from being registered twice
	srv1 := NewGRPCServer(testDependencies())
	srv2 := NewGRPCServer(testDependencies())
	if srv1 == nil || srv2 == nil {
		t.Fatal("Expected non-nil servers from multiple calls")
	}
}

func TestMatchFiles(t *testing.T) {
	conn := startServer(t, testDependencies())
	req, err := structpb.NewStruct(map[string]any{
		"subtitles": []any{"Show.S01E01.srt", "Other.srt"},
		"videos":    []any{"Show.S01E01.mkv", "Extra.mkv"},
	})
	if err != nil {
		t.Fatal(err)
	}

	resp := &structpb.Struct{}
	if err := conn.Invoke(context.Background(), "/"+ServiceName+"/MatchFiles", req, resp); err != nil {
		t.Fatalf("MatchFiles: %v", err)
	}
	matches := resp.GetFields()["matches"].GetListValue().GetValues()
	if len(matches) != 3 {
		t.Fatalf("got %d matches, want 3: %v", len(matches), resp)
	}
	first := matches[0].GetStructValue().GetFields()
	if first["subtitle"].GetStringValue() != "Show.S01E01.srt" || first["video"].GetStringValue() != "Show.S01E01.mkv" || first["status"].GetStringValue() != string(models.MatchStatusMatched) {
		t.Errorf("first match = %v", first)
	}
	last := matches[2].GetStructValue().GetFields()
	if _, isNull := last["subtitle"].GetKind().(*structpb.Value_NullValue); !isNull || last["status"].GetStringValue() != string(models.MatchStatusNoSubtitles) {
		t.Errorf("leftover video = %v", last)
	}
}

func TestMatchFiles_InvalidArgument(t *testing.T) {
	conn := startServer(t, testDependencies())
	req, _ := structpb.NewStruct(map[string]any{"subtitles": []any{"a.srt", 3.0}})

	err := conn.Invoke(context.Background(), "/"+ServiceName+"/MatchFiles", req, &structpb.Struct{})
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
	var field string
	for _, d := range st.Details() {
		if br, ok := d.(*errdetails.BadRequest); ok && len(br.FieldViolations) > 0 {
			field = br.FieldViolations[0].Field
		}
	}
	if field != "subtitles[1]" {
		t.Errorf("violation field = %q, want subtitles[1]", field)
	}
}

func TestTranslateFiles(t *testing.T) {
	deps := testDependencies()
	var got services.TranslateRequest
	deps.Jobs = &mockJobs{streamFunc: func(_ context.Context, req services.TranslateRequest) []models.StreamResult[models.FileResult] {
		got = req
		return []models.StreamResult[models.FileResult]{
			{Value: models.FileResult{OriginalSubtitle: "a.srt", TranslatedSubtitle: "a.fr.srt", Status: models.FileStatusSuccess, TotalBlocks: 4}},
			{Value: models.FileResult{OriginalSubtitle: "b.srt", Status: models.FileStatusFailed, Error: "subtitle b.srt not found"}},
		}
	}}
	conn := startServer(t, deps)

	req, _ := structpb.NewStruct(map[string]any{
		"selected_files": []any{map[string]any{"subtitle": "a.srt"}, map[string]any{"subtitle": "b.srt"}},
		"language_code":  "fr",
		"batch_size":     7,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream := openStream(ctx, t, conn, "TranslateFiles", req)

	var results []*structpb.Struct
	for {
		msg := &structpb.Struct{}
		err := stream.RecvMsg(msg)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("RecvMsg: %v", err)
		}
		results = append(results, msg)
	}

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if f := results[0].GetFields(); f["translated_subtitle"].GetStringValue() != "a.fr.srt" || f["total_blocks"].GetNumberValue() != 4 {
		t.Errorf("first result = %v", results[0])
	}
	if f := results[1].GetFields(); f["status"].GetStringValue() != "Failed" {
		t.Errorf("second result = %v", results[1])
	}
	if len(got.Files) != 2 || got.Settings.LanguageCode != "fr" || got.Settings.BatchSize != 7 || got.Settings.APIKey != "key" {
		t.Errorf("request = %+v", got)
	}
}

func TestTranslateFiles_NoFiles(t *testing.T) {
	conn := startServer(t, testDependencies())
	stream := openStream(context.Background(), t, conn, "TranslateFiles", &structpb.Struct{})
	err := stream.RecvMsg(&structpb.Struct{})
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("expected InvalidArgument, got %v", err)
	}
}

func TestStreamEvents(t *testing.T) {
	deps := testDependencies()
	deps.Events.Publish(models.LogEvent("info", "replayed"))
	conn := startServer(t, deps)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream := openStream(ctx, t, conn, "StreamEvents", &emptypb.Empty{})

	msg := &structpb.Struct{}
	if err := stream.RecvMsg(msg); err != nil {
		t.Fatalf("RecvMsg: %v", err)
	}
	if f := msg.GetFields(); f["type"].GetStringValue() != "log" || f["message"].GetStringValue() != "replayed" {
		t.Errorf("first event = %v", msg)
	}

	deps.Events.Publish(models.Event{Type: models.EventProgress, Filename: "a.srt", Current: 1, Total: 2})
	msg = &structpb.Struct{}
	if err := stream.RecvMsg(msg); err != nil {
		t.Fatalf("RecvMsg: %v", err)
	}
	if f := msg.GetFields(); f["filename"].GetStringValue() != "a.srt" || f["current"].GetNumberValue() != 1 {
		t.Errorf("progress event = %v", msg)
	}

	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for deps.Events.Subscribers() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := deps.Events.Subscribers(); n != 0 {
		t.Errorf("subscribers after cancel = %d, want 0", n)
	}
}

func TestRecoverInterceptors(t *testing.T) {
	t.Parallel()
	boom := func(context.Context, any) (any, error) { panic("boom") }
	_, err := recoverUnary(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/x/Unary"}, boom)
	if status.Code(err) != codes.Internal {
		t.Errorf("unary panic code = %v, want Internal", status.Code(err))
	}

	streamBoom := func(any, grpc.ServerStream) error { panic("boom") }
	err = recoverStream(nil, nil, &grpc.StreamServerInfo{FullMethod: "/x/Stream"}, streamBoom)
	if status.Code(err) != codes.Internal {
		t.Errorf("stream panic code = %v, want Internal", status.Code(err))
	}

	ok := func(context.Context, any) (any, error) { return "fine", nil }
	if resp, err := recoverUnary(context.Background(), nil, &grpc.UnaryServerInfo{}, ok); err != nil || resp != "fine" {
		t.Errorf("recoverUnary passthrough = %v, %v", resp, err)
	}
}
