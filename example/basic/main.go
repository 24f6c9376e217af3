package main

import (
	"fmt"
	"log"
	"os"

	"github.com/bvkay/LEMI-423-Reader"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: basic <file.B423>")
	}

	h, recs, err := lemi423.ReadFile(os.Args[1])
	if err != nil {
		log.Fatalf("read: %v", err)
	}
	fmt.Printf("serial=%s firmware=%s start=%s records=%d\n", h.Serial, h.Firmware, h.Start, len(recs))

	samples, err := lemi423.Calibrate(recs, h.Coefficients, lemi423.Dipole{Ex: 100, Ey: 100})
	if err != nil {
		log.Fatalf("calibrate: %v", err)
	}
	for _, s := range samples[:min(5, len(samples))] {
		fmt.Printf("%s bx=%.3f by=%.3f bz=%.3f ex=%.4f ey=%.4f\n", s.Time.Format("15:04:05.000"), s.Bx, s.By, s.Bz, s.Ex, s.Ey)
	}
}
