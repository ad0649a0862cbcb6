package grpcapi

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

//go:generate protoc -I ../../api --go_out=../../api --go_opt=paths=source_relative --go-grpc_out=../../api --go-grpc_opt=paths=source_relative consultation/v1/calendar.proto

// CodecName: content-subtype, под которым клиенты вызывают сервис календаря.
const CodecName = "json"

// jsonCodec кодирует сообщения календаря в JSON. Health и reflection остаются на protobuf.
// TODO: после go generate перевести CalendarService на типы consultationv1 и убрать jsonCodec.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
