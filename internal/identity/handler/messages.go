package handler

import (
	"time"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Messages of sessionguard.v1.AuthService. On the wire they are the protobuf messages described in wire.go.

// LoginRequest carries the outcome of a credential check performed by the caller.
type LoginRequest struct {
	UserID           string
	DeviceID         string
	CredentialsValid bool
}

// LoginResponse returns the bearer token of the issued session.
type LoginResponse struct {
	Token     string
	UserID    string
	DeviceID  string
	ExpiresAt time.Time
}

type WhoAmIRequest struct{}

type WhoAmIResponse struct {
	UserID   string
	DeviceID string
}

type LogoutRequest struct{}

type LogoutResponse struct {
	Revoked bool
}

// RevokeScope selects which sessions of the caller RevokeAll removes.
type RevokeScope string

const (
	RevokeScopeUser   RevokeScope = "user"
	RevokeScopeDevice RevokeScope = "device"
)

type RevokeAllRequest struct {
	Scope RevokeScope
}

type RevokeAllResponse struct {
	Count int
}

func (*LoginRequest) protoDescriptor() protoreflect.MessageDescriptor { return loginRequestDesc }

func (x *LoginRequest) toProto() *dynamicpb.Message {
	m := dynamicpb.NewMessage(loginRequestDesc)
	setString(m, "user_id", x.UserID)
	setString(m, "device_id", x.DeviceID)
	setBool(m, "credentials_valid", x.CredentialsValid)
	return m
}

func (x *LoginRequest) fromProto(m protoreflect.Message) {
	x.UserID = getString(m, "user_id")
	x.DeviceID = getString(m, "device_id")
	x.CredentialsValid = getBool(m, "credentials_valid")
}

func (*LoginResponse) protoDescriptor() protoreflect.MessageDescriptor { return loginResponseDesc }

func (x *LoginResponse) toProto() *dynamicpb.Message {
	m := dynamicpb.NewMessage(loginResponseDesc)
	setString(m, "token", x.Token)
	setString(m, "user_id", x.UserID)
	setString(m, "device_id", x.DeviceID)
	setTime(m, "expires_at", x.ExpiresAt)
	return m
}

func (x *LoginResponse) fromProto(m protoreflect.Message) {
	x.Token = getString(m, "token")
	x.UserID = getString(m, "user_id")
	x.DeviceID = getString(m, "device_id")
	x.ExpiresAt = getTime(m, "expires_at")
}

func (*WhoAmIRequest) protoDescriptor() protoreflect.MessageDescriptor { return whoAmIRequestDesc }
func (*WhoAmIRequest) toProto() *dynamicpb.Message                     { return dynamicpb.NewMessage(whoAmIRequestDesc) }
func (*WhoAmIRequest) fromProto(protoreflect.Message)                  {}

func (*WhoAmIResponse) protoDescriptor() protoreflect.MessageDescriptor { return whoAmIResponseDesc }

func (x *WhoAmIResponse) toProto() *dynamicpb.Message {
	m := dynamicpb.NewMessage(whoAmIResponseDesc)
	setString(m, "user_id", x.UserID)
	setString(m, "device_id", x.DeviceID)
	return m
}

func (x *WhoAmIResponse) fromProto(m protoreflect.Message) {
	x.UserID = getString(m, "user_id")
	x.DeviceID = getString(m, "device_id")
}

func (*LogoutRequest) protoDescriptor() protoreflect.MessageDescriptor { return logoutRequestDesc }
func (*LogoutRequest) toProto() *dynamicpb.Message                     { return dynamicpb.NewMessage(logoutRequestDesc) }
func (*LogoutRequest) fromProto(protoreflect.Message)                  {}

func (*LogoutResponse) protoDescriptor() protoreflect.MessageDescriptor { return logoutResponseDesc }

func (x *LogoutResponse) toProto() *dynamicpb.Message {
	m := dynamicpb.NewMessage(logoutResponseDesc)
	setBool(m, "revoked", x.Revoked)
	return m
}

func (x *LogoutResponse) fromProto(m protoreflect.Message) { x.Revoked = getBool(m, "revoked") }

func (*RevokeAllRequest) protoDescriptor() protoreflect.MessageDescriptor { return revokeAllRequestDesc }

func (x *RevokeAllRequest) toProto() *dynamicpb.Message {
	m := dynamicpb.NewMessage(revokeAllRequestDesc)
	setString(m, "scope", string(x.Scope))
	return m
}

func (x *RevokeAllRequest) fromProto(m protoreflect.Message) { x.Scope = RevokeScope(getString(m, "scope")) }

func (*RevokeAllResponse) protoDescriptor() protoreflect.MessageDescriptor { return revokeAllResponseDesc }

func (x *RevokeAllResponse) toProto() *dynamicpb.Message {
	m := dynamicpb.NewMessage(revokeAllResponseDesc)
	setInt64(m, "count", int64(x.Count))
	return m
}

func (x *RevokeAllResponse) fromProto(m protoreflect.Message) { x.Count = int(getInt64(m, "count")) }
