package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

type Application struct {
	Host     string   `koanf:"host"`
	Port     int      `koanf:"port"`
	Database Database `koanf:"db"`
	Budget   Budget   `koanf:"budget"`
	SMS      SMS      `koanf:"sms"`
}

type Database struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	User   string `koanf:"user"`
	Pass   string `koanf:"pass"`
	Name   string `koanf:"name"`
	Schema string `koanf:"schema"`
}

type Budget struct {
	// FallbackWeeklyLimitCents is used by the simulation when neither the request nor the current cycle sets a weekly limit.
	FallbackWeeklyLimitCents int64 `koanf:"fallbackweeklylimitcents"`
	// DefaultSegmentLimitCents seeds the remaining amount of a segment cycle when the segment has no weekly limit.
	DefaultSegmentLimitCents int64 `koanf:"defaultsegmentlimitcents"`
	// CycleSchedule is the cron spec (UTC) of the job that opens each week's cycle. Empty disables it.
	CycleSchedule string `koanf:"cycleschedule"`
}

type SMS struct {
	Twilio            Twilio `koanf:"twilio"`
	StatusCallbackUrl string `koanf:"statuscallbackurl"`
	Lanes             Lanes  `koanf:"lanes"`
}

type Twilio struct {
	AccountSid string `koanf:"accountsid"`
	AuthToken  string `koanf:"authtoken"`
	BaseUrl    string `koanf:"baseurl"`
}

// Lanes holds one provider-side sending identity (messaging service) per traffic lane.
type Lanes struct {
	Otp           string `koanf:"otp"`
	Transactional string `koanf:"transactional"`
	Marketing     string `koanf:"marketing"`
}

func Load(path string) (Application, error) {
	var k = koanf.New(".")

	err := k.Load(structs.Provider(Application{
		Host: "http://localhost:8181",
		Port: 8181,
		Database: Database{
			Host:   "localhost",
			Port:   5432,
			User:   "growthcore",
			Pass:   "",
			Name:   "growthcore",
			Schema: "growthcore",
		},
		Budget: Budget{
			FallbackWeeklyLimitCents: 500000,
			DefaultSegmentLimitCents: 100000,
			CycleSchedule:            "5 0 * * 1",
		},
		SMS: SMS{
			Twilio: Twilio{
				BaseUrl: "https://api.twilio.com",
			},
		},
	}, "koanf"), nil)
	if err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if os.IsNotExist(err) {
			log.Infof("Config file not found at %s, using defaults and environment variables", path)
		} else {
			log.Errorf("error loading config from YAML: %v", err)
			return Application{}, err
		}
	} else {
		log.Infof("Loaded configuration from file: %s", path)
	}

	err = k.Load(env.Provider(".", env.Opt{
		Prefix: "GROWTHCORE_",
		TransformFunc: func(k, v string) (string, any) {
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, "GROWTHCORE_")), "_", ".")
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, err
	}

	return app, nil
}
