package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// VoyageFile is the optional YAML description of a sailing. Non-zero
// values override the environment.
type VoyageFile struct {
	Cruise struct {
		StartDate      string `yaml:"start_date"`
		Length         int    `yaml:"length"`
		PortTimeZoneID string `yaml:"port_time_zone"`
	} `yaml:"cruise"`
	Schedule struct {
		ShowJoinedLFGs *bool `yaml:"show_joined_lfgs"`
		ShowOpenLFGs   *bool `yaml:"show_open_lfgs"`
	} `yaml:"schedule"`
	Server struct {
		APIBaseURL    string `yaml:"api_base_url"`
		SocketBaseURL string `yaml:"socket_base_url"`
	} `yaml:"server"`
}

func LoadVoyageFile(path string) (*VoyageFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var vf VoyageFile
	if err := yaml.Unmarshal(data, &vf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	vf.normalize()
	return &vf, nil
}

func (vf *VoyageFile) normalize() {
	vf.Cruise.StartDate = strings.TrimSpace(vf.Cruise.StartDate)
	vf.Cruise.PortTimeZoneID = strings.TrimSpace(vf.Cruise.PortTimeZoneID)
	vf.Server.APIBaseURL = strings.TrimRight(strings.TrimSpace(vf.Server.APIBaseURL), "/")
	vf.Server.SocketBaseURL = strings.TrimRight(strings.TrimSpace(vf.Server.SocketBaseURL), "/")
}

func (vf *VoyageFile) Apply(cfg *Config) {
	if vf.Cruise.StartDate != "" {
		cfg.Cruise.StartDate = vf.Cruise.StartDate
	}
	if vf.Cruise.Length > 0 {
		cfg.Cruise.Length = vf.Cruise.Length
	}
	if vf.Cruise.PortTimeZoneID != "" {
		cfg.Cruise.PortTimeZoneID = vf.Cruise.PortTimeZoneID
	}
	if vf.Schedule.ShowJoinedLFGs != nil {
		cfg.Schedule.ShowJoinedLFGs = *vf.Schedule.ShowJoinedLFGs
	}
	if vf.Schedule.ShowOpenLFGs != nil {
		cfg.Schedule.ShowOpenLFGs = *vf.Schedule.ShowOpenLFGs
	}
	if vf.Server.APIBaseURL != "" {
		cfg.API.BaseURL = vf.Server.APIBaseURL
	}
	if vf.Server.SocketBaseURL != "" {
		cfg.Socket.BaseURL = vf.Server.SocketBaseURL
	}
}
