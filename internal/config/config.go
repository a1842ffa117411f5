package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/alexytsu/NIARC-2018/internal/utils"
)

const DefaultAppName = "niarc"
const DefaultConfigName = "config"
const DefaultAPIInterface = "0.0.0.0"
const DefaultAPIPort = 18889
const DefaultMetricsPort = 19090
const DefaultI2CBus = "/dev/i2c-1"
const DefaultIMUAddr = 0x4A
const DefaultColorAddr = 0x29
const DefaultIMUID = "imu_0"
const DefaultColorID = "color_0"
const DefaultReportIntervalUS = 10000
const DefaultSerialBaud = 115200

var userHomeDir, _ = os.UserHomeDir()
var DefaultConfig = path.Join(userHomeDir, ".config/"+DefaultAppName+"/"+DefaultConfigName+".yaml")
var DefaultConfigSearchPath0 = path.Join(userHomeDir, ".config", DefaultAppName)

const DefaultConfigSearchPath1 = "/etc/" + DefaultAppName
const DefaultConfigSearchPath2 = "./"
const DefaultConfigSearchPath3 = "/config"

type APIOpt struct {
	Port      int    `yaml:"port"`
	Interface string `yaml:"interface"`
}

type MetricsOpt struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// IMUOpt describes one BNO080 on an I2C bus. PollIntervalMs and RetryBudget
// bound every per-packet wait; ReportIntervalUs goes into the Set Feature
// command when the rotation vector report is enabled.
type IMUOpt struct {
	ID               string `yaml:"id"`
	Bus              string `yaml:"bus"`
	Addr             int    `yaml:"addr"`
	ReportIntervalUs uint32 `yaml:"report_interval_us"`
	PollIntervalMs   int    `yaml:"poll_interval_ms"`
	RetryBudget      int    `yaml:"retry_budget"`
}

type ColorOpt struct {
	Enabled bool   `yaml:"enabled"`
	ID      string `yaml:"id"`
	Bus     string `yaml:"bus"`
	Addr    int    `yaml:"addr"`
}

// SerialOpt configures the quaternion republisher line output.
type SerialOpt struct {
	Enabled bool   `yaml:"enabled"`
	Name    string `yaml:"name"`
	Baud    int    `yaml:"baud"`
}

type RedisOpt struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	DB      int    `yaml:"db"`
}

type NIARCOpt struct {
	API     APIOpt     `yaml:"api"`
	Metrics MetricsOpt `yaml:"metrics"`
	IMU     []IMUOpt   `yaml:"imu"`
	Color   ColorOpt   `yaml:"color"`
	Serial  SerialOpt  `yaml:"serial"`
	Redis   RedisOpt   `yaml:"redis"`
	Debug   bool       `yaml:"debug"`
}

type NIARCDesc struct {
	Opt   NIARCOpt
	Viper *viper.Viper
}

func NewNIARCDesc() NIARCDesc {
	return NIARCDesc{
		Opt:   NewNIARCOpt(),
		Viper: nil,
	}
}

func NewNIARCOpt() NIARCOpt {
	return NIARCOpt{
		API: APIOpt{
			Port:      DefaultAPIPort,
			Interface: DefaultAPIInterface,
		},
		Metrics: MetricsOpt{
			Enabled: true,
			Port:    DefaultMetricsPort,
		},
		IMU: []IMUOpt{
			{
				ID:               DefaultIMUID,
				Bus:              DefaultI2CBus,
				Addr:             DefaultIMUAddr,
				ReportIntervalUs: DefaultReportIntervalUS,
				PollIntervalMs:   1,
				RetryBudget:      100,
			},
		},
		Color: ColorOpt{
			Enabled: false,
			ID:      DefaultColorID,
			Bus:     DefaultI2CBus,
			Addr:    DefaultColorAddr,
		},
		Serial: SerialOpt{
			Enabled: false,
			Baud:    DefaultSerialBaud,
		},
		Redis: RedisOpt{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
		},
		Debug: false,
	}
}

// PollInterval returns the wait between header polls, falling back to 1ms
// when unset so the wait loop always makes progress.
func (o *IMUOpt) PollInterval() time.Duration {
	if o.PollIntervalMs <= 0 {
		return time.Millisecond
	}
	return time.Duration(o.PollIntervalMs) * time.Millisecond
}

func (o *NIARCDesc) Parse(cmd *cobra.Command) error {
	vipCfg := viper.New()
	vipCfg.SetDefault("api.port", DefaultAPIPort)
	vipCfg.SetDefault("api.interface", DefaultAPIInterface)
	vipCfg.SetDefault("metrics.enabled", true)
	vipCfg.SetDefault("metrics.port", DefaultMetricsPort)
	vipCfg.SetDefault("debug", false)

	if configFileCmd, err := cmd.Flags().GetString("config"); err == nil && configFileCmd != "" {
		vipCfg.SetConfigFile(configFileCmd)
	} else {
		configFileEnv := os.Getenv("NIARC_CONFIG")
		if configFileEnv != "" {
			vipCfg.SetConfigFile(configFileEnv)
		} else {
			vipCfg.SetConfigName(DefaultConfigName)
			vipCfg.SetConfigType("yaml")
			vipCfg.AddConfigPath(DefaultConfigSearchPath0)
			vipCfg.AddConfigPath(DefaultConfigSearchPath1)
			vipCfg.AddConfigPath(DefaultConfigSearchPath2)
			vipCfg.AddConfigPath(DefaultConfigSearchPath3)
		}
	}
	vipCfg.WatchConfig()

	vipCfg.SetEnvPrefix(strings.ToUpper(DefaultAppName))
	vipCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vipCfg.AutomaticEnv()

	_ = vipCfg.BindPFlag("api.port", cmd.Flags().Lookup("port"))
	_ = vipCfg.BindPFlag("api.interface", cmd.Flags().Lookup("interface"))
	_ = vipCfg.BindPFlag("debug", cmd.Flags().Lookup("debug"))

	// If a config file is found, read it in.
	if err := vipCfg.ReadInConfig(); err == nil {
		log.Debugln("using config file:", vipCfg.ConfigFileUsed())
	} else {
		log.Warnln(err)
	}

	if err := vipCfg.Unmarshal(&o.Opt); err != nil {
		log.Fatalln("failed to unmarshal config")
		os.Exit(1)
	}

	o.Viper = vipCfg
	return nil
}

func (o *NIARCDesc) PostParse() {
	if o.Opt.Debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

func (o *NIARCDesc) SaveConfig() error {
	if o.Viper == nil {
		return errors.New("viper is nil")
	}
	f, err := os.OpenFile(o.Viper.ConfigFileUsed(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	defer func() { _ = f.Close() }()
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	s, _ := yaml.Marshal(o.Opt)
	_, err = w.Write(s)
	if err != nil {
		return err
	}
	_ = w.Flush()
	return nil
}

// InitCfg prepares a configuration template for the application
func InitCfg(cmd *cobra.Command, _ []string) error {
	printFlag, _ := cmd.Flags().GetBool("print")
	outputPath, _ := cmd.Flags().GetString("output")
	overwriteFlag, _ := cmd.Flags().GetBool("yes")

	desc := NewNIARCDesc()
	err := desc.Parse(cmd)
	if err != nil {
		log.Errorln(err)
		return err
	}

	if printFlag {
		configBuffer, _ := yaml.Marshal(desc.Opt)
		fmt.Println(string(configBuffer))
		return nil
	}
	return utils.DumpOption(desc.Opt, outputPath, overwriteFlag)
}
