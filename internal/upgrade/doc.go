// Package upgrade coordinates remote firmware and resource upgrades.
//
// Only one upgrade may run at a time. The busy flag is the single piece
// of explicit mutual exclusion in the firmware: a successful firmware
// upgrade leaves it set on purpose, because the device is about to
// reboot and must not accept another upgrade during the reboot delay.
//
// Firmware upgrades download an archive, verify its MD5 checksum and
// schedule a reboot. Resource upgrades add or remove a named media
// asset through a ResourceStore. Download, reboot and storage are all
// interfaces so the coordinator is testable without hardware.
package upgrade
