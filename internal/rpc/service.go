package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"dg-agenda/internal/wire"
)

const ServiceName = "agenda.v1.AgendaService"

// Full method names, as seen by interceptors and used by clients.
const (
	MethodLogin             = "/" + ServiceName + "/Login"
	MethodLogout            = "/" + ServiceName + "/Logout"
	MethodListAppointments  = "/" + ServiceName + "/ListAppointments"
	MethodCreateAppointment = "/" + ServiceName + "/CreateAppointment"
	MethodGetAppointment    = "/" + ServiceName + "/GetAppointment"
	MethodUpdateAppointment = "/" + ServiceName + "/UpdateAppointment"
	MethodDeleteAppointment = "/" + ServiceName + "/DeleteAppointment"
	MethodUpdateStatus      = "/" + ServiceName + "/UpdateAppointmentStatus"
	MethodWatch             = "/" + ServiceName + "/Watch"
)

// AgendaServer is the service implemented by Handler.
type AgendaServer interface {
	Login(context.Context, *wire.LoginRequest) (*wire.LoginResponse, error)
	Logout(context.Context, *wire.Empty) (*wire.Empty, error)
	ListAppointments(context.Context, *wire.ListRequest) (*wire.ListResponse, error)
	CreateAppointment(context.Context, *wire.CreateRequest) (*wire.AppointmentMessage, error)
	GetAppointment(context.Context, *wire.IDRequest) (*wire.AppointmentMessage, error)
	UpdateAppointment(context.Context, *wire.AppointmentMessage) (*wire.AppointmentMessage, error)
	UpdateAppointmentStatus(context.Context, *wire.StatusRequest) (*wire.AppointmentMessage, error)
	DeleteAppointment(context.Context, *wire.IDRequest) (*wire.Empty, error)
	Watch(*wire.Empty, WatchStream) error
}

// WatchStream is the server side of the Watch stream.
type WatchStream interface {
	Send(*wire.Event) error
	// SendHeader tells the client the watch is registered.
	SendHeader(metadata.MD) error
	Context() context.Context
}

type watchStream struct{ grpc.ServerStream }

func (s watchStream) Send(ev *wire.Event) error { return s.ServerStream.SendMsg(ev) }

// ServiceDesc describes AgendaService to grpc. Messages are encoded by
// wire.Codec, so servers must be built with grpc.ForceServerCodec(wire.Codec{}).
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AgendaServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Login", AgendaServer.Login),
		unary("Logout", AgendaServer.Logout),
		unary("ListAppointments", AgendaServer.ListAppointments),
		unary("CreateAppointment", AgendaServer.CreateAppointment),
		unary("GetAppointment", AgendaServer.GetAppointment),
		unary("UpdateAppointment", AgendaServer.UpdateAppointment),
		unary("UpdateAppointmentStatus", AgendaServer.UpdateAppointmentStatus),
		unary("DeleteAppointment", AgendaServer.DeleteAppointment),
	},
	Streams: []grpc.StreamDesc{{
		StreamName:    "Watch",
		ServerStreams: true,
		Handler: func(srv any, stream grpc.ServerStream) error {
			req := &wire.Empty{}
			if err := stream.RecvMsg(req); err != nil {
				return err
			}
			return srv.(AgendaServer).Watch(req, watchStream{stream})
		},
	}},
}

// unary adapts a typed method to grpc's untyped MethodDesc handler.
func unary[Req any, PReq interface {
	*Req
	wire.Message
}, Resp wire.Message](name string, call func(AgendaServer, context.Context, PReq) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, ic grpc.UnaryServerInterceptor) (any, error) {
			req := PReq(new(Req))
			if err := dec(req); err != nil {
				return nil, err
			}
			s := srv.(AgendaServer)
			if ic == nil {
				return call(s, ctx, req)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return ic(ctx, req, info, func(ctx context.Context, r any) (any, error) {
				return call(s, ctx, r.(PReq))
			})
		},
	}
}

// Register attaches h to s.
func Register(s grpc.ServiceRegistrar, h AgendaServer) {
	s.RegisterService(&ServiceDesc, h)
}
