package ctl

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/airmouse/internal/config"
	"github.com/oshokin/airmouse/internal/logger"
	"github.com/oshokin/airmouse/internal/service/common"
)

// Options selects the daemon and where results are printed.
type Options struct {
	// ConfigPath to YAML settings file; device.control_addr is the default target.
	ConfigPath string
	// Address overrides the control API address.
	Address string
	// Output receives the printed results.
	Output io.Writer
}

var errNoControlAddress = errors.New("control address is not configured")

// SetMode switches the device to mode and prints the acknowledgement.
func SetMode(ctx context.Context, opts *Options, mode string) error {
	return withClient(ctx, opts, func(c *common.Client) error {
		resp, err := c.SetMode(ctx, mode)
		if err != nil {
			return err
		}

		return printStruct(opts.Output, resp)
	})
}

// Calibrate runs a calibration of kind ("gyro" or "tilt") and prints the outcome.
func Calibrate(ctx context.Context, opts *Options, kind string) error {
	return withClient(ctx, opts, func(c *common.Client) error {
		resp, err := c.Calibrate(ctx, kind)
		if err != nil {
			return err
		}

		return printStruct(opts.Output, resp)
	})
}

// Status prints the device status snapshot.
func Status(ctx context.Context, opts *Options) error {
	return withClient(ctx, opts, func(c *common.Client) error {
		resp, err := c.GetStatus(ctx)
		if err != nil {
			return err
		}

		return printStruct(opts.Output, resp)
	})
}

// Watch prints every line the device publishes until ctx is canceled.
func Watch(ctx context.Context, opts *Options) error {
	return withClient(ctx, opts, func(c *common.Client) error {
		return c.Watch(ctx, func(line string) error {
			_, err := fmt.Fprintln(opts.Output, line)
			return err
		})
	})
}

func withClient(ctx context.Context, opts *Options, fn func(*common.Client) error) error {
	ctx = logger.WithName(ctx, "airmousectl")

	settings, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	address := opts.Address
	if address == "" {
		address = settings.Device.ControlAddress
	}

	if address == "" {
		return errNoControlAddress
	}

	client, err := common.Dial(ctx, address, common.WithCallTimeout(settings.Timeout))
	if err != nil {
		return err
	}

	defer func() {
		_ = client.Close()
	}()

	logger.DebugKV(ctx, "Connected to device", "address", address)

	return fn(client)
}

func printStruct(w io.Writer, s *structpb.Struct) error {
	data, err := protojson.MarshalOptions{Multiline: true}.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}

	_, err = fmt.Fprintln(w, string(data))

	return err
}
