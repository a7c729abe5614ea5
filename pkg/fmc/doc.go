// Package fmc programs the STM32 Flexible Memory Controller.
//
// It brings up two classes of external memory that share one register block:
// asynchronous NOR/PSRAM/SRAM devices on up to four chip-select banks, and
// SDRAM on up to two slots.
//
// # Overview
//
// The package provides:
//   - Encoders that turn declarative bank parameters into BCRx, BTRx, BWTRx,
//     SDCRx and SDTRx register words, bit for bit as the reference manual lays
//     them out.
//   - Controller.InitNorsram, which programs the NOR/SRAM banks.
//   - Controller.InitSdram, which runs the JEDEC power-up sequence for every
//     SDRAM slot, wrapped by the controller enable gate on families that have
//     one (STM32H7).
//
// # Usage
//
//	bus, err := regbus.OpenDevMem(0x52004000, fmc.RegisterBlockSize)
//	ctl := fmc.NewController(bus, fmc.FamilyH7)
//	err = ctl.Init(fmc.Config{
//		Sdram: []fmc.SdramBankParams{{
//			Slot:         fmc.SdramSlot1,
//			Control:      &control,
//			Timing:       &timing,
//			RefreshCount: 1292,
//		}},
//	})
//
// # Register access
//
// The core never caches register contents. Every read-modify-write goes back
// to the bus, and the SDRAM sequencer issues a Barrier before each busy poll
// so that the command write is visible before the status read.
//
// # Failure model
//
// Configuration problems (bank index out of range, missing parameter block,
// field value wider than its register field) are reported before the first
// register access. Once the SDRAM sequence has started, any failure is wrapped
// in a *SequenceError; the sequence is not idempotent and must not be retried
// from an unknown state.
package fmc
