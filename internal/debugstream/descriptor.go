package debugstream

import (
	"github.com/jhump/protoreflect/desc"
	"google.golang.org/protobuf/types/descriptorpb"
)

// eventDescriptor builds the DebugEvent message descriptor at runtime via
// protoreflect rather than from generated code. There is no .proto
// source at all, since the wire shape is fixed by this
// package rather than by a script-supplied file.
func eventDescriptor() (*desc.MessageDescriptor, error) {
	label := descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL
	strType := descriptorpb.FieldDescriptorProto_TYPE_STRING
	i32Type := descriptorpb.FieldDescriptorProto_TYPE_INT32

	field := func(name string, num int32, t descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
		return &descriptorpb.FieldDescriptorProto{
			Name:     proto(name),
			Number:   proto(num),
			Label:    &label,
			Type:     protoType(t),
			JsonName: proto(name),
		}
	}

	msg := &descriptorpb.DescriptorProto{
		Name: proto("DebugEvent"),
		Field: []*descriptorpb.FieldDescriptorProto{
			field("kind", 1, strType),
			field("file", 2, strType),
			field("line", 3, i32Type),
			field("column", 4, i32Type),
			field("target", 5, strType),
			field("result", 6, strType),
			field("error", 7, strType),
		},
	}

	fdProto := &descriptorpb.FileDescriptorProto{
		Name:    proto("asteria/debugstream/event.proto"),
		Package: proto("asteria.debugstream"),
		Syntax:  proto("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			msg,
		},
	}

	fd, err := desc.CreateFileDescriptor(fdProto)
	if err != nil {
		return nil, err
	}
	return fd.FindMessage("asteria.debugstream.DebugEvent"), nil
}

func proto[T any](v T) *T { return &v }

func protoType(t descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto_Type {
	return &t
}
