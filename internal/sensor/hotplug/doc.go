// Package hotplug gates sensor availability on the USB device being
// attached. Presence is seeded from a sysfs crawl and kept current from
// udev netlink add and remove events.
package hotplug
