// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lalcollator
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package dtshd

// CRC-16/CCITT-FALSE，多项式0x1021，初始值0xFFFF，按半字节查表，高半字节在前

const (
	crc16Poly = 0x1021
	crc16Init = 0xFFFF
)

var crc16NibbleTable [16]uint16

func init() {
	for i := 0; i < 16; i++ {
		crc := uint16(i) << 12
		for j := 0; j < 4; j++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ crc16Poly
			} else {
				crc <<= 1
			}
		}
		crc16NibbleTable[i] = crc
	}
}

func CalcCrc16(b []byte) uint16 {
	return UpdateCrc16(crc16Init, b)
}

func UpdateCrc16(crc uint16, b []byte) uint16 {
	for _, v := range b {
		crc = (crc << 4) ^ crc16NibbleTable[(crc>>12)^uint16(v>>4)]
		crc = (crc << 4) ^ crc16NibbleTable[(crc>>12)^uint16(v&0x0F)]
	}
	return crc
}
