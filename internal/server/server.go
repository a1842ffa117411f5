package server

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/alexytsu/NIARC-2018/internal/config"
	"github.com/alexytsu/NIARC-2018/internal/controller/api"
	imuImpl "github.com/alexytsu/NIARC-2018/internal/manager/bno080"
	colorImpl "github.com/alexytsu/NIARC-2018/internal/manager/tcs34725"
	"github.com/alexytsu/NIARC-2018/internal/observability"
	"github.com/alexytsu/NIARC-2018/internal/publisher"
	"github.com/alexytsu/NIARC-2018/internal/store"
)

type mainApp struct {
	name string
	cmd  *cobra.Command
	args []string
	opt  *config.NIARCOpt
}

func (a *mainApp) ProbeSensor() error {
	m := imuImpl.NewManager(a.opt)
	log.Infoln("Probing IMU devices...")
	res, err := m.ProbeDev()
	if err != nil {
		log.Errorln(err)
		return err
	} else {
		log.Infof("Found %d valid I2C buses: \n", len(res))
		for _, v := range res {
			fmt.Printf("- %s\n", strings.TrimSpace(v))
		}
	}
	return nil
}

func (a *mainApp) GetOpt() *config.NIARCOpt {
	return a.opt
}

func (a *mainApp) SetOpt(opt *config.NIARCOpt) { a.opt = opt }

var app MainApp = nil

func (a *mainApp) Run() {
	var once sync.Once
	once.Do(func() {
		app = a
	})

	log.Infoln("api.port:", a.opt.API.Port)
	log.Infoln("api.interface:", a.opt.API.Interface)
	log.Infoln("metrics.enabled:", a.opt.Metrics.Enabled)
	log.Infoln("serial.enabled:", a.opt.Serial.Enabled)
	log.Infoln("redis.enabled:", a.opt.Redis.Enabled)
	log.Infoln("debug:", a.opt.Debug)
	log.Infoln("imu.devices:", a.opt.IMU)

	if a.opt.Metrics.Enabled {
		go observability.StartMetricsServer(a.opt.Metrics.Port)
	}

	var pubs []imuImpl.Publisher
	if a.opt.Serial.Enabled {
		p, err := publisher.NewSerial(a.opt.Serial)
		if err != nil {
			log.Errorln("serial open err ", err)
			return
		}
		defer func() { _ = p.Close() }()
		pubs = append(pubs, p)
	}
	if a.opt.Redis.Enabled {
		if err := store.InitRedis(a.opt.Redis.Addr, a.opt.Redis.DB); err != nil {
			log.Errorln("redis init err ", err)
			return
		}
		pubs = append(pubs, store.Mirror{})
	}

	// start manager
	m := imuImpl.NewManager(a.opt, pubs...)
	go imuImpl.Daemon(m)

	var cm = colorImpl.NewManager(a.opt.Color)
	if a.opt.Color.Enabled {
		if err := cm.Start(); err != nil {
			log.Errorln("color manager start err ", err)
		}
	} else {
		cm = nil
	}

	// install and start api server
	r := api.NewRouter(m, cm, a.opt.Debug)
	addr := a.opt.API.Interface + ":" + strconv.Itoa(a.opt.API.Port)
	log.Info("start HTTP listen on ", addr)
	if err := r.Run(addr); err != nil {
		log.Errorln("failed to serve...", err)
		return
	}

	// wait for exit
	select {}
}

func (a *mainApp) PrepareRun() MainApp {
	desc := config.NewNIARCDesc()
	err := desc.Parse(a.cmd)
	if err != nil {
		log.Errorln(err)
		os.Exit(1)
		return nil
	}
	desc.PostParse()
	a.opt = &desc.Opt
	a.name = config.DefaultAppName

	if a.opt.Debug {
		log.SetLevel(log.DebugLevel)
	}

	return a
}

type MainApp interface {
	Run()
	PrepareRun() MainApp
	GetOpt() *config.NIARCOpt
	SetOpt(*config.NIARCOpt)
	ProbeSensor() error
}

func NewMainApp(cmd *cobra.Command, args []string) MainApp {
	return &mainApp{
		cmd:  cmd,
		args: args,
	}
}
