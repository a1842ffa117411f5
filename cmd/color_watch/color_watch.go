package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/alexytsu/NIARC-2018/internal/config"
	"github.com/alexytsu/NIARC-2018/internal/sensor/tcs34725"
)

var logger = log.New(os.Stdout, "tcs34725", log.LstdFlags)

func watch(bus string, addr int, raw bool) error {
	dev := tcs34725.New(nil, config.ColorOpt{ID: "watch", Bus: bus, Addr: addr})
	if err := dev.Open(); err != nil {
		return err
	}
	defer dev.Close()

	for {
		r, err := dev.Read()
		if err != nil {
			return err
		}
		if raw {
			fmt.Printf("c=%d r=%d g=%d b=%d  %s\n", r.Clear, r.Red, r.Green, r.Blue, r.Dominant.Message())
		} else {
			fmt.Println(r.Dominant.Message())
		}
		time.Sleep(time.Second)
	}
}

func main() {
	busFlag := flag.String("bus", config.DefaultI2CBus, "The I2C bus device to use")
	addrFlag := flag.Int("addr", config.DefaultColorAddr, "The I2C address of the sensor")
	rawFlag := flag.Bool("raw", false, "Also print the raw channel counts")

	flag.Parse()

	if *busFlag == "" {
		logger.Fatal("--bus must be specified")
	}

	if err := watch(*busFlag, *addrFlag, *rawFlag); err != nil {
		logger.Fatal(err)
	}
}
