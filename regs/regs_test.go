package regs

import "testing"

func TestUARTBlocksDoNotOverlap(t *testing.T) {
	if UARTTx < UARTRx+uartModSize {
		t.Fatalf("tx block at %#x overlaps rx block [%#x, %#x)", UARTTx, UARTRx, UARTRx+uartModSize)
	}
}

func TestGPIORegsFitDeclaredSize(t *testing.T) {
	if GPIOIn+4 > GPIORegsSize {
		t.Fatalf("in register at %#x exceeds declared size %#x", GPIOIn, GPIORegsSize)
	}
}
