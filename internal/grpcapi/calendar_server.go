// Package grpcapi exposes read-only calendar queries over gRPC.
package grpcapi

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Leganyst/consultation-booking/internal/calendar"
	"github.com/Leganyst/consultation-booking/internal/metrics"
	"github.com/Leganyst/consultation-booking/internal/service"
	"github.com/Leganyst/consultation-booking/pkg/logging"
)

const serviceName = "consultation.v1.Calendar"

// CalendarServer: контракт сервиса календаря.
type CalendarServer interface {
	ListAvailableSlots(context.Context, *ListAvailableSlotsRequest) (*ListAvailableSlotsResponse, error)
	GetPricing(context.Context, *GetPricingRequest) (*GetPricingResponse, error)
	GetBooking(context.Context, *GetBookingRequest) (*Booking, error)
}

// CalendarService: реализация поверх сервисного слоя.
type CalendarService struct {
	schedule *service.ScheduleService
	settings *service.SettingsService
	bookings *service.BookingService
	metrics  *metrics.BookingMetrics
	logger   *logging.Logger
}

func NewCalendarService(
	schedule *service.ScheduleService,
	settings *service.SettingsService,
	bookings *service.BookingService,
	m *metrics.BookingMetrics,
	logger *logging.Logger,
) *CalendarService {
	if logger == nil {
		logger = logging.Default()
	}
	return &CalendarService{
		schedule: schedule,
		settings: settings,
		bookings: bookings,
		metrics:  m,
		logger:   logger,
	}
}

func (s *CalendarService) ListAvailableSlots(ctx context.Context, req *ListAvailableSlotsRequest) (*ListAvailableSlotsResponse, error) {
	if req.Date == "" {
		return nil, status.Error(codes.InvalidArgument, "date is required")
	}
	slots, err := s.schedule.AvailableSlots(ctx, req.Date)
	if err != nil {
		return nil, s.toStatus(err)
	}
	s.metrics.ObserveAvailability("grpc", len(slots))
	return &ListAvailableSlotsResponse{Date: req.Date, Slots: slots}, nil
}

func (s *CalendarService) GetPricing(ctx context.Context, _ *GetPricingRequest) (*GetPricingResponse, error) {
	cfg, err := s.settings.PaymentConfig(ctx)
	if err != nil {
		return nil, s.toStatus(err)
	}
	pricing, err := s.settings.Pricing(ctx)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &GetPricingResponse{
		Currency:           cfg.Currency,
		BasePriceCents:     pricing.BasePriceCents,
		HalfExtensionCents: pricing.HalfExtensionCents,
		FullExtensionCents: pricing.FullExtensionCents,
		PaymentDestination: pricing.PaymentDestination,
		Quotes:             cfg.Quotes,
	}, nil
}

func (s *CalendarService) GetBooking(ctx context.Context, req *GetBookingRequest) (*Booking, error) {
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	b, err := s.bookings.Get(ctx, req.ID)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return bookingFromModel(b), nil
}

// toStatus maps core errors to gRPC codes.
func (s *CalendarService) toStatus(err error) error {
	switch {
	case errors.Is(err, calendar.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, calendar.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, calendar.ErrExternalRail):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, calendar.ErrInvalidTransition):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, calendar.ErrSlotUnavailable):
		return status.Error(codes.AlreadyExists, err.Error())
	default:
		s.logger.Error("grpc call failed", "error", err)
		return status.Error(codes.Internal, "internal error")
	}
}

func _Calendar_ListAvailableSlots_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListAvailableSlotsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CalendarServer).ListAvailableSlots(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/ListAvailableSlots"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CalendarServer).ListAvailableSlots(ctx, req.(*ListAvailableSlotsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Calendar_GetPricing_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetPricingRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CalendarServer).GetPricing(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/GetPricing"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CalendarServer).GetPricing(ctx, req.(*GetPricingRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Calendar_GetBooking_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetBookingRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CalendarServer).GetBooking(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/GetBooking"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CalendarServer).GetBooking(ctx, req.(*GetBookingRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// Calendar_ServiceDesc описывает сервис вручную: сообщения кодируются JSON-кодеком.
var Calendar_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*CalendarServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListAvailableSlots", Handler: _Calendar_ListAvailableSlots_Handler},
		{MethodName: "GetPricing", Handler: _Calendar_GetPricing_Handler},
		{MethodName: "GetBooking", Handler: _Calendar_GetBooking_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "consultation/v1/calendar",
}

func RegisterCalendarServer(s grpc.ServiceRegistrar, srv CalendarServer) {
	s.RegisterService(&Calendar_ServiceDesc, srv)
}

// CalendarClient вызывает сервис с JSON content-subtype.
type CalendarClient struct {
	cc grpc.ClientConnInterface
}

func NewCalendarClient(cc grpc.ClientConnInterface) *CalendarClient {
	return &CalendarClient{cc: cc}
}

func (c *CalendarClient) ListAvailableSlots(ctx context.Context, in *ListAvailableSlotsRequest, opts ...grpc.CallOption) (*ListAvailableSlotsResponse, error) {
	out := new(ListAvailableSlotsResponse)
	if err := c.invoke(ctx, "ListAvailableSlots", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CalendarClient) GetPricing(ctx context.Context, in *GetPricingRequest, opts ...grpc.CallOption) (*GetPricingResponse, error) {
	out := new(GetPricingResponse)
	if err := c.invoke(ctx, "GetPricing", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CalendarClient) GetBooking(ctx context.Context, in *GetBookingRequest, opts ...grpc.CallOption) (*Booking, error) {
	out := new(Booking)
	if err := c.invoke(ctx, "GetBooking", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CalendarClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, opts...)
}
