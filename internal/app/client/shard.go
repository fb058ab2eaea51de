package client

import "hash/crc32"

// SelectShardURL выбирает шард для пользователя: CRC32 от userID по
// модулю числа шардов. Чистая функция; при пустом списке возвращает
// пустую строку.
func SelectShardURL(userID string, shards []string) string {
	if len(shards) == 0 {
		return ""
	}
	sum := crc32.ChecksumIEEE([]byte(userID))
	return shards[int(sum%uint32(len(shards)))]
}
