package handler

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// ProtoFile is the descriptor of sessionguard/v1/auth.proto. It is built at init from the declarations below,
// so the service needs no generated code; messages travel through grpc's default proto codec as dynamicpb
// messages.
var ProtoFile = buildAuthFile()

var (
	loginRequestDesc      = ProtoFile.Messages().ByName("LoginRequest")
	loginResponseDesc     = ProtoFile.Messages().ByName("LoginResponse")
	whoAmIRequestDesc     = ProtoFile.Messages().ByName("WhoAmIRequest")
	whoAmIResponseDesc    = ProtoFile.Messages().ByName("WhoAmIResponse")
	logoutRequestDesc     = ProtoFile.Messages().ByName("LogoutRequest")
	logoutResponseDesc    = ProtoFile.Messages().ByName("LogoutResponse")
	revokeAllRequestDesc  = ProtoFile.Messages().ByName("RevokeAllRequest")
	revokeAllResponseDesc = ProtoFile.Messages().ByName("RevokeAllResponse")
)

// wireMessage is implemented by the pointer types in messages.go.
type wireMessage[T any] interface {
	*T
	protoDescriptor() protoreflect.MessageDescriptor
	toProto() *dynamicpb.Message
	fromProto(protoreflect.Message)
}

func buildAuthFile() protoreflect.FileDescriptor {
	var (
		str   = descriptorpb.FieldDescriptorProto_TYPE_STRING
		boolT = descriptorpb.FieldDescriptorProto_TYPE_BOOL
		i64   = descriptorpb.FieldDescriptorProto_TYPE_INT64
	)
	fdp := &descriptorpb.FileDescriptorProto{
		Name:       proto.String("sessionguard/v1/auth.proto"),
		Package:    proto.String("sessionguard.v1"),
		Dependency: []string{timestamppb.File_google_protobuf_timestamp_proto.Path()},
		Syntax:     proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			message("LoginRequest", scalar("user_id", 1, str), scalar("device_id", 2, str), scalar("credentials_valid", 3, boolT)),
			message("LoginResponse", scalar("token", 1, str), scalar("user_id", 2, str), scalar("device_id", 3, str),
				nested("expires_at", 4, ".google.protobuf.Timestamp")),
			message("WhoAmIRequest"),
			message("WhoAmIResponse", scalar("user_id", 1, str), scalar("device_id", 2, str)),
			message("LogoutRequest"),
			message("LogoutResponse", scalar("revoked", 1, boolT)),
			message("RevokeAllRequest", scalar("scope", 1, str)),
			message("RevokeAllResponse", scalar("count", 1, i64)),
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name:   proto.String("AuthService"),
			Method: []*descriptorpb.MethodDescriptorProto{rpc("Login"), rpc("WhoAmI"), rpc("Logout"), rpc("RevokeAll")},
		}},
	}
	deps := new(protoregistry.Files)
	if err := deps.RegisterFile(timestamppb.File_google_protobuf_timestamp_proto); err != nil {
		panic(fmt.Sprintf("handler: register timestamp.proto: %v", err))
	}
	fd, err := protodesc.NewFile(fdp, deps)
	if err != nil {
		panic(fmt.Sprintf("handler: build auth.proto: %v", err))
	}
	return fd
}

func message(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{Name: proto.String(name), Field: fields}
}

func scalar(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   typ.Enum(),
	}
}

func nested(name string, number int32, typeName string) *descriptorpb.FieldDescriptorProto {
	f := scalar(name, number, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE)
	f.TypeName = proto.String(typeName)
	return f
}

func rpc(name string) *descriptorpb.MethodDescriptorProto {
	return &descriptorpb.MethodDescriptorProto{
		Name:       proto.String(name),
		InputType:  proto.String(".sessionguard.v1." + name + "Request"),
		OutputType: proto.String(".sessionguard.v1." + name + "Response"),
	}
}

func fieldOf(m protoreflect.Message, name string) protoreflect.FieldDescriptor {
	fd := m.Descriptor().Fields().ByName(protoreflect.Name(name))
	if fd == nil {
		panic(fmt.Sprintf("handler: %s has no field %s", m.Descriptor().FullName(), name))
	}
	return fd
}

// Zero values are left unset, as proto3 would encode them.

func setString(m protoreflect.Message, name, v string) {
	if v != "" {
		m.Set(fieldOf(m, name), protoreflect.ValueOfString(v))
	}
}

func setBool(m protoreflect.Message, name string, v bool) {
	if v {
		m.Set(fieldOf(m, name), protoreflect.ValueOfBool(v))
	}
}

func setInt64(m protoreflect.Message, name string, v int64) {
	if v != 0 {
		m.Set(fieldOf(m, name), protoreflect.ValueOfInt64(v))
	}
}

func setTime(m protoreflect.Message, name string, t time.Time) {
	if t.IsZero() {
		return
	}
	fd := fieldOf(m, name)
	ts := m.NewField(fd).Message()
	ts.Set(fieldOf(ts, "seconds"), protoreflect.ValueOfInt64(t.Unix()))
	if n := t.Nanosecond(); n != 0 {
		ts.Set(fieldOf(ts, "nanos"), protoreflect.ValueOfInt32(int32(n)))
	}
	m.Set(fd, protoreflect.ValueOfMessage(ts))
}

func getString(m protoreflect.Message, name string) string { return m.Get(fieldOf(m, name)).String() }
func getBool(m protoreflect.Message, name string) bool     { return m.Get(fieldOf(m, name)).Bool() }
func getInt64(m protoreflect.Message, name string) int64   { return m.Get(fieldOf(m, name)).Int() }

func getTime(m protoreflect.Message, name string) time.Time {
	fd := fieldOf(m, name)
	if !m.Has(fd) {
		return time.Time{}
	}
	ts := m.Get(fd).Message()
	return time.Unix(ts.Get(fieldOf(ts, "seconds")).Int(), ts.Get(fieldOf(ts, "nanos")).Int()).UTC()
}
