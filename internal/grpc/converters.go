package grpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Belphemur/SubTranslate/internal/models"
)

// toStruct converts any JSON-encodable value into a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("convert %T to struct: %w", v, err)
	}
	return out, nil
}

// fromStruct decodes a Struct into out through its JSON form.
func fromStruct(s *structpb.Struct, out any) error {
	data, err := protojson.Marshal(s)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func convertMatchesToStruct(matches []models.FileMatch) (*structpb.Struct, error) {
	list := make([]any, len(matches))
	for i, m := range matches {
		entry := map[string]any{"status": string(m.Status), "subtitle": nil, "video": nil}
		if m.Subtitle != nil {
			entry["subtitle"] = *m.Subtitle
		}
		if m.Video != nil {
			entry["video"] = *m.Video
		}
		list[i] = entry
	}
	return structpb.NewStruct(map[string]any{"matches": list})
}

// stringList reads field as a list of strings. A missing field is an empty list.
func stringList(req *structpb.Struct, field string) ([]string, *errdetails.BadRequest_FieldViolation) {
	v, ok := req.GetFields()[field]
	if !ok {
		return nil, nil
	}
	list := v.GetListValue()
	if list == nil {
		return nil, &errdetails.BadRequest_FieldViolation{Field: field, Description: "must be a list of strings"}
	}
	out := make([]string, 0, len(list.GetValues()))
	for i, item := range list.GetValues() {
		str, isString := item.GetKind().(*structpb.Value_StringValue)
		if !isString {
			return nil, &errdetails.BadRequest_FieldViolation{
				Field:       fmt.Sprintf("%s[%d]", field, i),
				Description: "must be a string",
			}
		}
		out = append(out, str.StringValue)
	}
	return out, nil
}

// invalidArgument builds an InvalidArgument status carrying a BadRequest detail.
func invalidArgument(message string, violations ...*errdetails.BadRequest_FieldViolation) error {
	st := status.New(codes.InvalidArgument, message)
	if len(violations) == 0 {
		return st.Err()
	}
	withDetails, err := st.WithDetails(&errdetails.BadRequest{FieldViolations: violations})
	if err != nil {
		return st.Err()
	}
	return withDetails.Err()
}
