package fmc

import "fmt"

// Family selects the controller variant. Only the register-level differences
// that matter to bring-up are modelled: whether BCR1 carries a top-level
// controller enable bit.
type Family uint8

const (
	FamilyF4 Family = iota
	FamilyF7
	FamilyH7
)

var familyNames = map[Family]string{
	FamilyF4: "STM32F4",
	FamilyF7: "STM32F7",
	FamilyH7: "STM32H7",
}

var familyCompatibles = map[string]Family{
	"st,stm32f4-fmc": FamilyF4,
	"st,stm32f7-fmc": FamilyF7,
	"st,stm32h7-fmc": FamilyH7,
}

func (f Family) String() string {
	if name, ok := familyNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Family(%d)", f)
}

// Compatible returns the device-tree compatible string of the family.
func (f Family) Compatible() string {
	for compat, fam := range familyCompatibles {
		if fam == f {
			return compat
		}
	}
	return ""
}

// HasControllerEnable reports whether the family's FMC must be disabled
// through BCR1.FMCEN while SDRAM is programmed and re-enabled afterwards.
func (f Family) HasControllerEnable() bool {
	return f == FamilyH7
}

// FamilyFromCompatible maps a device-tree compatible string to a family.
func FamilyFromCompatible(compat string) (Family, error) {
	if f, ok := familyCompatibles[compat]; ok {
		return f, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFamily, compat)
}
