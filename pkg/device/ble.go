// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Ditch Labs

package device

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"
)

// Nordic UART service used by the ditchpen firmware
const (
	UARTServiceUUID = "6e400001-b5a3-f393-e0a9-e50e24dcca9e"
	// write commands here
	UARTWriteCharUUID = "6e400002-b5a3-f393-e0a9-e50e24dcca9e"
	// notifications arrive here
	UARTNotifyCharUUID = "6e400003-b5a3-f393-e0a9-e50e24dcca9e"
)

// DefaultNamePrefix is the advertised local name prefix of ditchpen devices
const DefaultNamePrefix = "DITCH"

const (
	defaultScanTimeout    = 30 * time.Second
	defaultConnectTimeout = 10 * time.Second
)

var (
	uartServiceUUID    = mustParseUUID(UARTServiceUUID)
	uartWriteCharUUID  = mustParseUUID(UARTWriteCharUUID)
	uartNotifyCharUUID = mustParseUUID(UARTNotifyCharUUID)
)

func mustParseUUID(s string) bluetooth.UUID {
	u, err := bluetooth.ParseUUID(s)
	if err != nil {
		panic(err)
	}
	return u
}

// Advertisement is one device seen during a scan
type Advertisement struct {
	Name    string
	Address string
	RSSI    int16
}

// BLEDialer finds a ditchpen by advertised name and links to its UART service
type BLEDialer struct {
	Adapter        *bluetooth.Adapter
	NamePrefix     string
	ScanTimeout    time.Duration
	ConnectTimeout time.Duration
	Log            *logrus.Entry

	enableOnce sync.Once
	enableErr  error
}

// NewBLEDialer creates a dialer on the default adapter
func NewBLEDialer(namePrefix string, scanTimeout time.Duration) *BLEDialer {
	if namePrefix == "" {
		namePrefix = DefaultNamePrefix
	}
	if scanTimeout <= 0 {
		scanTimeout = defaultScanTimeout
	}
	return &BLEDialer{
		Adapter:        bluetooth.DefaultAdapter,
		NamePrefix:     namePrefix,
		ScanTimeout:    scanTimeout,
		ConnectTimeout: defaultConnectTimeout,
		Log:            logrus.WithField("component", "ble"),
	}
}

func (d *BLEDialer) enable() error {
	d.enableOnce.Do(func() {
		if err := d.Adapter.Enable(); err != nil {
			d.enableErr = fmt.Errorf("could not enable adapter: %w", err)
		}
	})
	return d.enableErr
}

// Scan reports every advertisement whose local name starts with the dialer's
// prefix until ctx is done or found returns false.
func (d *BLEDialer) Scan(ctx context.Context, found func(Advertisement) bool) error {
	if err := d.enable(); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.Adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			name := result.LocalName()
			if !strings.HasPrefix(name, d.NamePrefix) {
				return
			}
			ad := Advertisement{Name: name, Address: result.Address.String(), RSSI: result.RSSI}
			if !found(ad) {
				if err := adapter.StopScan(); err != nil {
					d.Log.WithError(err).Warn("stop scan problem")
				}
			}
		})
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		d.Adapter.StopScan()
		<-errCh
		return ctx.Err()
	}
}

// Dial scans for a device, connects and subscribes to its notify characteristic
func (d *BLEDialer) Dial(ctx context.Context, notify NotifyFunc) (Link, error) {
	target, name, err := d.findAddress(ctx)
	if err != nil {
		return nil, err
	}

	params := bluetooth.ConnectionParams{
		ConnectionTimeout: bluetooth.NewDuration(d.ConnectTimeout),
	}
	dev, err := d.Adapter.Connect(target, params)
	if err != nil {
		return nil, fmt.Errorf("could not connect to %s: %w", name, err)
	}

	link, err := bindUART(dev, name, target.String(), notify)
	if err != nil {
		dev.Disconnect()
		return nil, err
	}
	return link, nil
}

// findAddress scans until the first device with the name prefix shows up
func (d *BLEDialer) findAddress(ctx context.Context) (bluetooth.Address, string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.ScanTimeout)
	defer cancel()

	if err := d.enable(); err != nil {
		return bluetooth.Address{}, "", err
	}

	type hit struct {
		addr bluetooth.Address
		name string
	}
	hitCh := make(chan hit, 1)
	errCh := make(chan error, 1)

	go func() {
		errCh <- d.Adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			name := result.LocalName()
			if !strings.HasPrefix(name, d.NamePrefix) {
				return
			}
			select {
			case hitCh <- hit{addr: result.Address, name: name}:
				d.Log.WithFields(logrus.Fields{"name": name, "address": result.Address.String()}).Info("found device")
			default:
			}
			if err := adapter.StopScan(); err != nil {
				d.Log.WithError(err).Warn("stop scan problem")
			}
		})
	}()

	select {
	case h := <-hitCh:
		<-errCh
		return h.addr, h.name, nil
	case err := <-errCh:
		select {
		case h := <-hitCh:
			return h.addr, h.name, nil
		default:
		}
		if err == nil {
			err = fmt.Errorf("scan stopped before a device was found")
		}
		return bluetooth.Address{}, "", fmt.Errorf("scan failed: %w", err)
	case <-ctx.Done():
		d.Adapter.StopScan()
		<-errCh
		return bluetooth.Address{}, "", fmt.Errorf("no device named %s* found within %s", d.NamePrefix, d.ScanTimeout)
	}
}

func bindUART(dev bluetooth.Device, name, address string, notify NotifyFunc) (*bleLink, error) {
	services, err := dev.DiscoverServices([]bluetooth.UUID{uartServiceUUID})
	if err != nil {
		return nil, fmt.Errorf("could not discover services: %w", err)
	}
	if len(services) == 0 {
		return nil, fmt.Errorf("UART service %s not found", UARTServiceUUID)
	}

	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{uartWriteCharUUID, uartNotifyCharUUID})
	if err != nil {
		return nil, fmt.Errorf("could not discover characteristics: %w", err)
	}

	link := &bleLink{dev: dev, name: name, address: address}
	var writeSet, notifySet bool
	var notifyChar bluetooth.DeviceCharacteristic
	for _, ch := range chars {
		switch ch.UUID() {
		case uartWriteCharUUID:
			link.writeChar = ch
			writeSet = true
		case uartNotifyCharUUID:
			notifyChar = ch
			notifySet = true
		}
	}
	if !writeSet || !notifySet {
		return nil, fmt.Errorf("could not bind characteristics")
	}

	if err := notifyChar.EnableNotifications(func(buf []byte) { notify(buf) }); err != nil {
		return nil, fmt.Errorf("could not enable notifications: %w", err)
	}
	return link, nil
}

// bleLink is a connected ditchpen over the Nordic UART service
type bleLink struct {
	dev       bluetooth.Device
	name      string
	address   string
	writeChar bluetooth.DeviceCharacteristic
	writeMu   sync.Mutex
}

func (l *bleLink) Name() string {
	return l.name
}

func (l *bleLink) Write(p []byte) (int, error) {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	return writeCharacteristic(l.writeChar, p)
}

func (l *bleLink) Close() error {
	return l.dev.Disconnect()
}

// Describe lists every service and characteristic with its readable value
func (l *bleLink) Describe(ctx context.Context) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "device name: %s\n", l.name)
	fmt.Fprintf(&b, "device id: %s\n", l.address)
	fmt.Fprintf(&b, "connected: true\n\n")

	services, err := l.dev.DiscoverServices(nil)
	if err != nil {
		return "", fmt.Errorf("could not discover services: %w", err)
	}
	for _, svc := range services {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "service: %s\n", svc.UUID().String())
		chars, err := svc.DiscoverCharacteristics(nil)
		if err != nil {
			fmt.Fprintf(&b, "  (could not discover characteristics: %v)\n\n", err)
			continue
		}
		for _, ch := range chars {
			fmt.Fprintf(&b, "  characteristic: %s ", ch.UUID().String())
			buf := make([]byte, 512)
			n, err := readCharacteristic(ch, buf)
			if err != nil {
				fmt.Fprintf(&b, "(could not read value: %v)\n", err)
				continue
			}
			fmt.Fprintf(&b, "(value: %s)\n", strings.ToValidUTF8(string(buf[:n]), "�"))
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}
