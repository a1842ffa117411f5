package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/alexytsu/NIARC-2018/internal/config"
	"github.com/alexytsu/NIARC-2018/internal/sensor/bno080"
)

var logger = log.New(os.Stdout, "bno080", log.LstdFlags)

func configure(bus string, addr int, intervalUs uint32, seconds int) error {
	opt := config.IMUOpt{
		ID:               "setup",
		Bus:              bus,
		Addr:             addr,
		ReportIntervalUs: intervalUs,
	}
	dev := bno080.New(nil, opt)
	if err := dev.Open(); err != nil {
		return err
	}
	defer dev.Close()

	prod := dev.ProductIDs()
	fmt.Printf("part %d sw %d.%d.%d build %d\n",
		prod.PartNumber, prod.VersionMajor, prod.VersionMinor, prod.VersionPatch, prod.BuildNumber)

	q1, ok := dev.GetQ1(bno080.FRSRotationVector)
	if ok {
		fmt.Printf("rotation vector Q1 = %d\n", q1)
	} else {
		fmt.Println("rotation vector Q1 not reported, using default")
	}

	deadline := time.Now().Add(time.Duration(seconds) * time.Second)
	for time.Now().Before(deadline) {
		// DataAvailable waits out the poll budget itself, no extra sleep
		if !dev.DataAvailable() {
			continue
		}
		raw := dev.Readings()
		fmt.Printf("quat i=%+.3f j=%+.3f k=%+.3f real=%+.3f acc=%.3frad\n",
			bno080.QToFloat(raw.RawQuat[0], bno080.QRotationVector),
			bno080.QToFloat(raw.RawQuat[1], bno080.QRotationVector),
			bno080.QToFloat(raw.RawQuat[2], bno080.QRotationVector),
			bno080.QToFloat(raw.RawQuat[3], bno080.QRotationVector),
			bno080.QToFloat(raw.RawQuatAccuracy, bno080.QRotationVectorAccuracy))
	}
	return nil
}

func main() {
	busFlag := flag.String("bus", config.DefaultI2CBus, "The I2C bus device to use")
	addrFlag := flag.Int("addr", config.DefaultIMUAddr, "The I2C address of the hub")
	intervalFlag := flag.Uint("interval", config.DefaultReportIntervalUS, "Report interval in microseconds")
	secondsFlag := flag.Int("seconds", 5, "How long to dump reports for")

	flag.Parse()

	if *busFlag == "" || *intervalFlag == 0 {
		logger.Fatal("--bus must be specified along with a non-zero --interval")
	}

	err := configure(*busFlag, *addrFlag, uint32(*intervalFlag), *secondsFlag)
	if err != nil {
		logger.Fatal(err)
	}
}
