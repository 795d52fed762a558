package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const scheduleServiceName = "studio.v1.ScheduleService"

// ScheduleServiceServer is the set of RPCs served under studio.v1.ScheduleService.
// Messages travel as JSON through the codec registered in this package.
type ScheduleServiceServer interface {
	Plan(context.Context, *PlanRequest) (*AppointmentResponse, error)
	Book(context.Context, *BookRequest) (*AppointmentResponse, error)
	Move(context.Context, *MoveRequest) (*AppointmentResponse, error)
	SetStatus(context.Context, *SetStatusRequest) (*AppointmentResponse, error)
	Delete(context.Context, *AppointmentRequest) (*Empty, error)
	Ledger(context.Context, *AppointmentRequest) (*LedgerResponse, error)
	DayView(context.Context, *DayViewRequest) (*DayViewResponse, error)
	CashCheckout(context.Context, *CashCheckoutRequest) (*ReceiptResponse, error)
	PaymentLink(context.Context, *PaymentLinkRequest) (*PaymentLinkResponse, error)
	RecordPeerPayment(context.Context, *RecordPeerPaymentRequest) (*ReceiptResponse, error)
	StartCardCheckout(context.Context, *StartCardRequest) (*CardSessionResponse, error)
	FinishCardCheckout(context.Context, *FinishCardRequest) (*ReceiptResponse, error)
	CancelCardCheckout(context.Context, *CancelCardRequest) (*Empty, error)
}

// FullMethod returns the method path clients invoke, e.g.
// "/studio.v1.ScheduleService/Book".
func FullMethod(name string) string {
	return "/" + scheduleServiceName + "/" + name
}

func unary[Req, Resp any](name string, call func(ScheduleServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ScheduleServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ScheduleServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var ScheduleServiceDesc = grpc.ServiceDesc{
	ServiceName: scheduleServiceName,
	HandlerType: (*ScheduleServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Plan", ScheduleServiceServer.Plan),
		unary("Book", ScheduleServiceServer.Book),
		unary("Move", ScheduleServiceServer.Move),
		unary("SetStatus", ScheduleServiceServer.SetStatus),
		unary("Delete", ScheduleServiceServer.Delete),
		unary("Ledger", ScheduleServiceServer.Ledger),
		unary("DayView", ScheduleServiceServer.DayView),
		unary("CashCheckout", ScheduleServiceServer.CashCheckout),
		unary("PaymentLink", ScheduleServiceServer.PaymentLink),
		unary("RecordPeerPayment", ScheduleServiceServer.RecordPeerPayment),
		unary("StartCardCheckout", ScheduleServiceServer.StartCardCheckout),
		unary("FinishCardCheckout", ScheduleServiceServer.FinishCardCheckout),
		unary("CancelCardCheckout", ScheduleServiceServer.CancelCardCheckout),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "studio/v1/schedule.json",
}

func RegisterScheduleServiceServer(s grpc.ServiceRegistrar, srv ScheduleServiceServer) {
	s.RegisterService(&ScheduleServiceDesc, srv)
}
