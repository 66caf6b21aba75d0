package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/oshokin/airmouse/internal/api/grpc/control"
	"github.com/oshokin/airmouse/internal/calibration"
	"github.com/oshokin/airmouse/internal/config"
	"github.com/oshokin/airmouse/internal/domain/motion"
	"github.com/oshokin/airmouse/internal/engine"
	"github.com/oshokin/airmouse/internal/logger"
	"github.com/oshokin/airmouse/internal/protocol"
	repository "github.com/oshokin/airmouse/internal/repository/calibration"
	"github.com/oshokin/airmouse/internal/sensor"
	"github.com/oshokin/airmouse/internal/service/common"
	"github.com/oshokin/airmouse/internal/sink"
	"github.com/oshokin/airmouse/internal/transport"
)

// Options controls the airmouse-device process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress overrides the line protocol listen address.
	ListenAddress string
	// ReplayFile switches the sensor to a scripted replay.
	ReplayFile string
	// Mode is the initial mode: "idle", "cursor" or "gesture".
	Mode string
	// AllowMultiple skips the single-instance check.
	AllowMultiple bool
	// Ready, when set, receives the bound addresses once every server listens.
	Ready func(Addresses)
}

// Addresses are the actual listen addresses of a running daemon.
type Addresses struct {
	Line      string
	Control   string
	Dashboard string
}

const (
	requestQueueSize = 16
	watchBufferSize  = 256
	shutdownTimeout  = 3 * time.Second
)

var errUnknownMode = errors.New("unknown mode")

// Run starts the daemon and blocks until ctx is canceled or a server fails.
//
//nolint:funlen // Sequential wiring of every component.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "airmouse-device")

	settings, err := loadSettings(opts)
	if err != nil {
		return err
	}

	if !opts.AllowMultiple {
		if err = common.EnsureSingleInstance(ctx); err != nil {
			return err
		}
	}

	source, err := openSource(settings.Device)
	if err != nil {
		return err
	}

	if closer, ok := source.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	eng, err := engine.New(settings.Detection, settings.Cursor)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	repo := repository.NewFileRepository(settings.Device.CalibrationFile)

	if settings.Device.RestoreCalibration {
		restoreOffsets(ctx, repo, eng)
	}

	requests := make(chan engine.Request, requestQueueSize)
	broker := sink.NewBroker(watchBufferSize)
	lineServer := transport.NewTCPServer(requests)
	fanout := sink.NewFanout(lineServer, broker)

	controller := engine.NewController(
		eng,
		source,
		calibration.New(source, settings.Detection.Calibration),
		fanout,
		engine.WithStore(repo),
		engine.WithInterval(settings.Device.PollInterval),
	)

	if err = prepare(ctx, controller, settings, opts.Mode); err != nil {
		return err
	}

	lc := net.ListenConfig{}

	lineListener, err := lc.Listen(ctx, "tcp", settings.Device.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", settings.Device.ListenAddress, err)
	}

	// Early returns below must stop the goroutines already started.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(runCtx)

	group.Go(func() error { return controller.Run(groupCtx, requests) })
	group.Go(func() error { return lineServer.Serve(groupCtx, lineListener) })

	addresses := Addresses{Line: lineListener.Addr().String()}

	if settings.Device.SerialPort != "" {
		serialPort, serialErr := transport.OpenSerial(settings.Device.SerialPort, settings.Device.SerialBaud)
		if serialErr != nil {
			return serialErr
		}

		defer func() { _ = serialPort.Close() }()

		fanout.Add(serialPort)
		group.Go(func() error { return serialPort.Serve(groupCtx, requests) })
	}

	if settings.MQTT.Broker != "" {
		publisher, mqttErr := sink.DialMQTT(ctx, settings.MQTT, settings.Timeout)
		if mqttErr != nil {
			return mqttErr
		}

		defer publisher.Close()

		fanout.Add(publisher)
	}

	if settings.Device.ControlAddress != "" {
		controlListener, listenErr := lc.Listen(ctx, "tcp", settings.Device.ControlAddress)
		if listenErr != nil {
			return fmt.Errorf("listen on %s: %w", settings.Device.ControlAddress, listenErr)
		}

		addresses.Control = controlListener.Addr().String()
		svc := &service{requests: requests, controller: controller, broker: broker}

		group.Go(func() error { return serveControl(groupCtx, controlListener, svc) })
	}

	if settings.Dashboard.ListenAddress != "" {
		dashboardListener, listenErr := lc.Listen(ctx, "tcp", settings.Dashboard.ListenAddress)
		if listenErr != nil {
			return fmt.Errorf("listen on %s: %w", settings.Dashboard.ListenAddress, listenErr)
		}

		addresses.Dashboard = dashboardListener.Addr().String()
		hub := sink.NewHub()
		fanout.Add(hub)

		group.Go(func() error { return serveDashboard(groupCtx, dashboardListener, hub, controller) })
	}

	logger.InfoKV(ctx, "Device daemon started",
		"line_address", addresses.Line,
		"control_address", addresses.Control,
		"dashboard_address", addresses.Dashboard,
		"sensor", settings.Device.Sensor)

	if opts.Ready != nil {
		opts.Ready(addresses)
	}

	if err = group.Wait(); err != nil {
		logger.ErrorKV(ctx, "Device daemon failed", "error", err)
		return err
	}

	logger.Info(ctx, "Device daemon stopped")

	return nil
}

func loadSettings(opts *Options) (*config.Config, error) {
	settings, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	if opts.ListenAddress != "" {
		settings.Device.ListenAddress = opts.ListenAddress
	}

	if opts.ReplayFile != "" {
		settings.Device.Sensor = config.SensorReplay
		settings.Device.ReplayFile = opts.ReplayFile
	}

	if err = config.Validate(settings); err != nil {
		return nil, fmt.Errorf("validate settings: %w", err)
	}

	return settings, nil
}

// openSource opens the configured sample source.
func openSource(d config.Device) (sensor.Source, error) {
	switch d.Sensor {
	case config.SensorReplay:
		return sensor.LoadReplay(d.ReplayFile)
	default:
		return sensor.OpenMPU6050(d.I2CBus, d.I2CAddress)
	}
}

func restoreOffsets(ctx context.Context, repo repository.Repository, eng *engine.Engine) {
	offsets, err := repo.Load(ctx)

	switch {
	case err == nil:
		eng.SetOffsets(offsets)
		logger.InfoKV(ctx, "Calibration restored",
			"gx_offset", offsets.GxOffset,
			"gy_offset", offsets.GyOffset,
			"gz_offset", offsets.GzOffset)
	case errors.Is(err, repository.ErrNotFound):
		logger.Info(ctx, "No saved calibration, starting with zero offsets")
	default:
		logger.WarnKV(ctx, "Unable to restore calibration", "error", err)
	}
}

// prepare runs the startup calibration and selects the initial mode before
// any transport is accepting commands.
func prepare(ctx context.Context, controller *engine.Controller, settings *config.Config, mode string) error {
	if settings.Device.CalibrateOnStart {
		if _, err := controller.Handle(ctx, protocol.CommandCalibrate); err != nil {
			logger.WarnKV(ctx, "Startup calibration failed, keeping previous offsets", "error", err)
		}
	}

	if mode == "" {
		return nil
	}

	m, ok := motion.ParseMode(mode)
	if !ok {
		return fmt.Errorf("%w: %q", errUnknownMode, mode)
	}

	_, err := controller.Handle(ctx, modeCommand(m))

	return err
}

func modeCommand(m motion.Mode) protocol.Command {
	switch m {
	case motion.ModeCursor:
		return protocol.CommandCursorMode
	case motion.ModeGesture:
		return protocol.CommandGestureMode
	default:
		return protocol.CommandIdleMode
	}
}

func serveControl(ctx context.Context, listener net.Listener, svc control.Service) error {
	ctx = logger.WithName(ctx, "control")

	grpcServer := grpc.NewServer()
	control.RegisterControlServer(grpcServer, control.NewServer(svc))

	logger.InfoKV(ctx, "Control API listening", "listen_address", listener.Addr().String())

	// Done channel is closed after GracefulStop finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down gRPC server")

		// Watch streams only end with their clients; force them after a grace period.
		timer := time.AfterFunc(shutdownTimeout, grpcServer.Stop)
		grpcServer.GracefulStop()
		timer.Stop()
		close(done)
	}()

	if err := grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "GRPC server stopped")

	return nil
}

func serveDashboard(ctx context.Context, listener net.Listener, hub *sink.Hub, controller *engine.Controller) error {
	ctx = logger.WithName(ctx, "dashboard")

	mux := http.NewServeMux()
	mux.Handle("GET /ws/events", hub)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = fmt.Fprintf(w, "ok mode=%s\n", controller.Status().Mode)
	})

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		hub.Close()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.InfoKV(ctx, "Dashboard listening", "listen_address", listener.Addr().String())

	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve dashboard: %w", err)
	}

	return nil
}
