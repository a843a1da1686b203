// Reader polls holding registers of a modbus TCP device and prints them.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/goburrow/modbus"
)

func readHoldingRegisters(client modbus.Client, start, quantity uint16) ([]uint16, error) {
	bb, err := client.ReadHoldingRegisters(start, quantity)
	if err != nil {
		return nil, fmt.Errorf("error reading holding registers: %w", err)
	}
	values := make([]uint16, len(bb)/2)
	for i := range values {
		values[i] = binary.BigEndian.Uint16(bb[2*i:])
	}
	return values, nil
}

func main() {
	addr := flag.String("addr", "localhost:502", "device address host:port")
	unit := flag.Uint("unit", 1, "unit id")
	start := flag.Uint("start", 0, "first holding register")
	quantity := flag.Uint("quantity", 10, "number of holding registers")
	interval := flag.Duration("interval", 0, "poll interval, 0 reads once")
	flag.Parse()

	handler := modbus.NewTCPClientHandler(*addr)
	handler.Timeout = 1 * time.Second
	handler.SlaveId = byte(*unit)

	err := handler.Connect()
	if err != nil {
		log.Fatal(err)
	}
	defer handler.Close()

	client := modbus.NewClient(handler)
	for {
		values, err := readHoldingRegisters(client, uint16(*start), uint16(*quantity))
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("%s:", time.Now().Format(time.TimeOnly))
		for i, v := range values {
			fmt.Printf(" r%d=%d", int(*start)+i, v)
		}
		fmt.Println()

		if *interval <= 0 {
			return
		}
		time.Sleep(*interval)
	}
}
