package hotplug

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/crawler"
	"github.com/pilebones/go-udev/netlink"

	"skelrec/internal/logging"
)

// Monitor tracks whether a USB device with a given vendor and product ID is
// plugged in, using an initial sysfs crawl followed by udev netlink events.
type Monitor struct {
	logger  *slog.Logger
	product string

	// connect opens the udev netlink socket.
	connect func() (*netlink.UEventConn, error)

	mu   sync.Mutex
	conn *netlink.UEventConn
	// blind is set when netlink is unavailable; the device is then
	// assumed present so availability follows the inner device alone.
	blind    bool
	quit     chan struct{}
	running  bool
	devices  map[string]struct{}
	onChange []func(present bool)
}

// NewMonitor builds a monitor for the USB IDs given as hex strings
// ("045e", "0x02c4").
func NewMonitor(vendorID, productID string, logger *slog.Logger) (*Monitor, error) {
	vendor, err := parseUSBID(vendorID)
	if err != nil {
		return nil, fmt.Errorf("usb vendor id: %w", err)
	}
	product, err := parseUSBID(productID)
	if err != nil {
		return nil, fmt.Errorf("usb product id: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Monitor{
		logger: logging.NewComponentLogger(logger, "hotplug"),
		// udev reports PRODUCT as vendor/product/bcdDevice in unpadded hex.
		product: fmt.Sprintf("%x/%x/", vendor, product),
		devices: make(map[string]struct{}),
		connect: connectUdev,
	}, nil
}

func connectUdev() (*netlink.UEventConn, error) {
	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		return nil, err
	}
	return conn, nil
}

func parseUSBID(raw string) (uint16, error) {
	raw = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(raw)), "0x")
	v, err := strconv.ParseUint(raw, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", raw, err)
	}
	return uint16(v), nil
}

// OnChange registers fn for presence transitions.
func (m *Monitor) OnChange(fn func(present bool)) {
	if m == nil || fn == nil {
		return
	}
	m.mu.Lock()
	m.onChange = append(m.onChange, fn)
	m.mu.Unlock()
}

// Present reports whether at least one matching device is plugged in, or
// true when netlink could not be opened.
func (m *Monitor) Present() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.presentLocked()
}

func (m *Monitor) presentLocked() bool {
	return m.blind || len(m.devices) > 0
}

// Start crawls sysfs for devices that are already attached, then listens
// for udev events. A netlink failure is logged and the device is treated as
// present from then on, since unplug and replug can no longer be seen.
func (m *Monitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	m.scanExisting()

	conn, err := m.connect()
	if err != nil {
		logging.WarnWithContext(m.logger, "netlink unavailable; assuming the sensor is attached", "netlink_connect_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "ensure the daemon has permission to access netlink sockets"),
			logging.String(logging.FieldImpact, "sensor unplug and replug go unnoticed"),
		)
		m.setBlind(true)
		return nil
	}
	m.setBlind(false)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, conn, quit)

	m.logger.Info("usb hotplug monitor started",
		logging.String(logging.FieldEventType, "hotplug_monitor_started"),
		logging.String("product", m.product),
		logging.Bool("present", m.presentLocked()),
	)
	return nil
}

// Stop shuts down the netlink listener.
func (m *Monitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("usb hotplug monitor stopped",
		logging.String(logging.FieldEventType, "hotplug_monitor_stopped"),
	)
}

// Running reports whether the netlink listener is active.
func (m *Monitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) scanExisting() {
	queue := make(chan crawler.Device)
	errs := make(chan error, 1)
	crawler.ExistingDevices(queue, errs, m.deviceMatcher(nil))
	for dev := range queue {
		m.setDevice(dev.KObj, true)
	}
	select {
	case err := <-errs:
		m.logger.Debug("sysfs crawl incomplete", logging.Error(err))
	default:
	}
}

func (m *Monitor) monitorLoop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	action := "add|remove"
	monitorQuit := conn.Monitor(queue, errs, m.deviceMatcher(&action))

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(uevent)
		case err := <-errs:
			m.logger.Warn("netlink monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_monitor_error"),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "sensor presence may be stale"),
			)
		}
	}
}

// deviceMatcher matches the USB device node (not its interfaces) for the
// configured IDs. action is nil for the sysfs crawl.
func (m *Monitor) deviceMatcher(action *string) netlink.Matcher {
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: action,
		Env: map[string]string{
			"SUBSYSTEM": "^usb$",
			"DEVTYPE":   "^usb_device$",
			"PRODUCT":   "^" + m.product,
		},
	})
	return rules
}

func (m *Monitor) handleEvent(uevent netlink.UEvent) {
	if !strings.HasPrefix(uevent.Env["PRODUCT"], m.product) {
		return
	}
	switch uevent.Action {
	case netlink.ADD:
		m.setDevice(uevent.KObj, true)
	case netlink.REMOVE:
		m.setDevice(uevent.KObj, false)
	default:
		return
	}
	m.logger.Debug("usb sensor event",
		logging.String("action", string(uevent.Action)),
		logging.String("kobj", uevent.KObj),
	)
}

// setDevice records a device path as attached or detached and notifies on
// presence transitions. Crawled paths carry a /sys prefix netlink omits.
func (m *Monitor) setDevice(kobj string, attached bool) {
	key := strings.TrimPrefix(kobj, "/sys")

	m.update(func() {
		if attached {
			m.devices[key] = struct{}{}
		} else {
			delete(m.devices, key)
		}
	}, logging.String("kobj", key))
}

func (m *Monitor) setBlind(blind bool) {
	m.update(func() { m.blind = blind }, logging.Bool("netlink_unavailable", blind))
}

// update applies change under the lock and notifies listeners when it
// flips presence.
func (m *Monitor) update(change func(), attrs ...logging.Attr) {
	m.mu.Lock()
	before := m.presentLocked()
	change()
	after := m.presentLocked()
	listeners := append([]func(bool){}, m.onChange...)
	m.mu.Unlock()

	if before == after {
		return
	}
	attrs = append(attrs,
		logging.String(logging.FieldEventType, "hotplug_presence_changed"),
		logging.Bool("present", after),
	)
	m.logger.Info("usb sensor presence changed", logging.Args(attrs...)...)
	for _, fn := range listeners {
		fn(after)
	}
}
