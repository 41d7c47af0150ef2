// Package config 提供服务配置加载
// 配置文件为YAML，环境变量 PAIFANG_ 前缀可覆盖任意项
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/paifang/paifang/pkg/classifier"
	"github.com/paifang/paifang/pkg/logger"
	"github.com/paifang/paifang/pkg/model"
	"github.com/paifang/paifang/pkg/scheduler/problem"
)

// Config 服务配置
type Config struct {
	Server     ServerConfig     `json:"server"`
	Database   DatabaseConfig   `json:"database"`
	Logger     logger.Config    `json:"logger"`
	Scheduling SchedulingConfig `json:"scheduling"`
}

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

// Addr 返回监听地址
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Name     string `json:"name"`
	SSLMode  string `json:"ssl_mode"`

	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
}

// DSN 返回连接串
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// SchedulingConfig 排程配置（时刻项使用 HH:MM 文本）
type SchedulingConfig struct {
	WorkStart     string `json:"work_start"`
	WorkEnd       string `json:"work_end"`
	LunchStart    string `json:"lunch_start"`
	LunchEnd      string `json:"lunch_end"`
	LunchDuration int    `json:"lunch_duration"`

	MaxVisitsAM int `json:"max_visits_am"`
	MaxVisitsPM int `json:"max_visits_pm"`

	SameZoneTravel  int `json:"same_zone_travel"`
	CrossZoneTravel int `json:"cross_zone_travel"`
	HospitalDepart  int `json:"hospital_depart"`

	BloodDrawLatest string `json:"blood_draw_latest"`

	IVMinSeparation int `json:"iv_min_separation"`
	IVMaxSeparation int `json:"iv_max_separation"`
	PinTolerance    int `json:"pin_tolerance"`

	MaxIterations int `json:"max_iterations"`
	MaxAttempts   int `json:"max_attempts"`

	FallbackZone string `json:"fallback_zone"`
}

// Load 加载配置文件并应用环境变量覆盖
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	if err := k.Load(env.Provider("PAIFANG_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "paifang_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("读取环境变量失败: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("配置解析失败: %w", err)
	}
	return cfg, nil
}

// Default 返回默认配置
func Default() *Config {
	params := problem.DefaultParams()
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "paifang",
			Name:            "paifang",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Logger: logger.DefaultConfig(),
		Scheduling: SchedulingConfig{
			WorkStart:       params.WorkStart.Clock(),
			WorkEnd:         params.WorkEnd.Clock(),
			LunchStart:      params.LunchStart.Clock(),
			LunchEnd:        params.LunchEnd.Clock(),
			LunchDuration:   params.LunchDuration,
			MaxVisitsAM:     params.MaxVisitsAM,
			MaxVisitsPM:     params.MaxVisitsPM,
			SameZoneTravel:  params.SameZoneTravel,
			CrossZoneTravel: params.CrossZoneTravel,
			HospitalDepart:  params.HospitalDepart,
			BloodDrawLatest: params.BloodDrawLatest.Clock(),
			IVMinSeparation: params.IVMinSeparation,
			IVMaxSeparation: params.IVMaxSeparation,
			PinTolerance:    params.PinTolerance,
			MaxIterations:   params.MaxIterations,
			MaxAttempts:     params.MaxAttempts,
		},
	}
}

// Params 将排程配置转换为求解参数
func (s SchedulingConfig) Params() (problem.Params, error) {
	params := problem.DefaultParams()

	clocks := []struct {
		raw string
		dst *model.Minutes
	}{
		{s.WorkStart, &params.WorkStart},
		{s.WorkEnd, &params.WorkEnd},
		{s.LunchStart, &params.LunchStart},
		{s.LunchEnd, &params.LunchEnd},
		{s.BloodDrawLatest, &params.BloodDrawLatest},
	}
	for _, c := range clocks {
		if c.raw == "" {
			continue
		}
		m, err := model.ParseClock(c.raw)
		if err != nil {
			return params, fmt.Errorf("排程时刻配置无效: %w", err)
		}
		*c.dst = m
	}

	params.LunchDuration = s.LunchDuration
	params.MaxVisitsAM = s.MaxVisitsAM
	params.MaxVisitsPM = s.MaxVisitsPM
	params.SameZoneTravel = s.SameZoneTravel
	params.CrossZoneTravel = s.CrossZoneTravel
	params.HospitalDepart = s.HospitalDepart
	params.IVMinSeparation = s.IVMinSeparation
	params.IVMaxSeparation = s.IVMaxSeparation
	params.PinTolerance = s.PinTolerance
	params.MaxIterations = s.MaxIterations
	params.MaxAttempts = s.MaxAttempts

	if err := params.Validate(); err != nil {
		return params, err
	}
	return params, nil
}

// ClassifierConfig 将排程配置转换为分类参数
func (s SchedulingConfig) ClassifierConfig() (classifier.Config, error) {
	cfg := classifier.DefaultConfig()
	params, err := s.Params()
	if err != nil {
		return cfg, err
	}

	cfg.WorkStart = params.WorkStart
	cfg.WorkEnd = params.WorkEnd
	cfg.LunchStart = params.LunchStart
	cfg.LunchEnd = params.LunchEnd
	cfg.BloodDrawLatest = params.BloodDrawLatest
	cfg.FallbackZone = model.Zone(s.FallbackZone)
	return cfg, nil
}
