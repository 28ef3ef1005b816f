package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/osbuild/guestconv/internal/disk"
	"github.com/osbuild/guestconv/internal/guestfs/hostfs"
)

// GuestConfigFile describes a guest whose filesystems are mounted on the
// host.
type GuestConfigFile struct {
	// Dir is where the guest root is mounted on the host.
	Dir           string            `toml:"dir"`
	Root          string            `toml:"root"`
	ChrootCommand []string          `toml:"chroot_command,omitempty"`
	Mounts        map[string]string `toml:"mounts"`
	Devices       []DeviceConfig    `toml:"devices,omitempty"`
}

type DeviceConfig struct {
	Name       string            `toml:"name"`
	Partitions []PartitionConfig `toml:"partitions,omitempty"`
}

type PartitionConfig struct {
	Number int    `toml:"number"`
	Type   string `toml:"type,omitempty"`
}

func LoadConfig(name string) (*GuestConfigFile, error) {
	var c GuestConfigFile
	md, err := toml.DecodeFile(name, &c)
	if err != nil {
		return nil, err
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("unknown keys in %s: %s", name, strings.Join(keys, ", "))
	}

	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", name, err)
	}
	return &c, nil
}

func DumpConfig(c *GuestConfigFile, w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

func (c *GuestConfigFile) validate() error {
	if c.Dir == "" {
		return errors.New("dir is required")
	}
	if c.Root == "" {
		return errors.New("root is required")
	}
	if _, ok := c.Mounts["/"]; !ok {
		return errors.New("mounts must contain /")
	}

	seen := map[string]bool{}
	for _, d := range c.Devices {
		if d.Name == "" {
			return errors.New("device without a name")
		}
		if seen[d.Name] {
			return fmt.Errorf("device %s listed twice", d.Name)
		}
		seen[d.Name] = true

		for _, p := range d.Partitions {
			if p.Number < 1 {
				return fmt.Errorf("device %s: invalid partition number %d", d.Name, p.Number)
			}
			if p.Type == "" {
				continue
			}
			if err := disk.ValidatePartitionType(p.Type); err != nil {
				return fmt.Errorf("device %s: partition %d: invalid type %q: %w", d.Name, p.Number, p.Type, err)
			}
		}
	}
	return nil
}

// HostfsOptions converts the config into options for a hostfs handle.
func (c *GuestConfigFile) HostfsOptions() hostfs.Options {
	opts := hostfs.Options{
		Dir:           c.Dir,
		Root:          c.Root,
		Mounts:        c.Mounts,
		ChrootCommand: c.ChrootCommand,
	}
	for _, d := range c.Devices {
		dev := hostfs.Device{Name: d.Name}
		for _, p := range d.Partitions {
			dev.Partitions = append(dev.Partitions, hostfs.Partition{Number: p.Number, Type: p.Type})
		}
		opts.Devices = append(opts.Devices, dev)
	}
	return opts
}
