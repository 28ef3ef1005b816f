// Package disk contains helpers for working with the partition layout of a
// guest disk.
package disk

import (
	"strconv"

	"github.com/google/uuid"
)

// Well-known GPT partition type GUIDs.
const (
	BIOSBootPartitionGUID  = "21686148-6449-6E6F-744E-656564454649"
	FilesystemDataGUID     = "0FC63DAF-8483-4772-8E79-3D69D8477DE4"
	EFISystemPartitionGUID = "C12A7328-F81F-11D2-BA4B-00A0C93EC93B"
	LinuxSwapGUID          = "0657FD6D-A4AB-43C4-84E5-0933C84B4F4F"
	LVMPartitionGUID       = "E6D6D379-F507-44C2-A23C-238F2A3DF928"
)

// IsPartitionType reports whether guid names the partition type want.
// Both values are parsed as UUIDs so differences in case or surrounding
// braces do not matter. Unparseable values never match.
func IsPartitionType(guid, want string) bool {
	a, err := uuid.Parse(guid)
	if err != nil {
		return false
	}
	b, err := uuid.Parse(want)
	if err != nil {
		return false
	}
	return a == b
}

// IsEFISystemPartition reports whether guid is the EFI System Partition type.
func IsEFISystemPartition(guid string) bool {
	return IsPartitionType(guid, EFISystemPartitionGUID)
}

// ValidatePartitionType returns an error if guid is not a well-formed GUID.
func ValidatePartitionType(guid string) error {
	_, err := uuid.Parse(guid)
	return err
}

// PartitionName returns the name of partition partnum on device using the
// plain "<device><number>" convention, e.g. /dev/sda1.
func PartitionName(device string, partnum int) string {
	return device + strconv.Itoa(partnum)
}
