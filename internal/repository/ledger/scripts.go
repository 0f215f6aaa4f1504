package ledger

// Every script returns an array of strings: rueidis cannot decode mixed
// integer/string arrays into []string, and a nil element truncates the reply.
//
// Keys of one account share the {accountID} hash tag, so the counter hash the
// scripts derive from ARGV[1] lives in the same slot as KEYS[1].

// applyScript reads the open period and, in apply mode, increments its counters.
// The first touch of an account opens the default period passed in ARGV.
//
// KEYS[1] period pointer hash
// ARGV    counter key prefix, now ms, default start ms, default end ms,
//
//	requests, tokens, cost micros, mode ("apply" | "read")
//
// Reply   {"noperiod", start, end} | {"overflow", field, current, delta} or
//
//	{"ok", start, end, req0, tok0, cost0, req1, tok1, cost1}
//
// Lua numbers are doubles, so the int64 overflow check splits each decimal
// counter into high and low nine-digit halves that stay exact.
const applyScript = `
local MAXH, MAXL = 9223372036, 854775807

local function split(s)
  local n = string.len(s)
  if n <= 9 then
    return 0, tonumber(s)
  end
  return tonumber(string.sub(s, 1, n - 9)), tonumber(string.sub(s, n - 8))
end

local function fits(a, b)
  local ah, al = split(a)
  local bh, bl = split(b)
  local h, l = ah + bh, al + bl
  if l >= 1000000000 then
    h, l = h + 1, l - 1000000000
  end
  return h < MAXH or (h == MAXH and l <= MAXL)
end

local ptr = KEYS[1]
local start = redis.call('HGET', ptr, 'start')
local finish
if not start then
  start = ARGV[3]
  finish = ARGV[4]
  redis.call('HSET', ptr, 'start', start, 'end', finish)
  redis.call('HSET', ARGV[1] .. start, 'start', start, 'end', finish,
    'requests', 0, 'tokens', 0, 'cost', 0, 'closed', 0)
else
  finish = redis.call('HGET', ptr, 'end')
end

local ckey = ARGV[1] .. start
local v = redis.call('HMGET', ckey, 'requests', 'tokens', 'cost')
local r0 = v[1] or '0'
local t0 = v[2] or '0'
local c0 = v[3] or '0'

if ARGV[8] == 'read' then
  return {'ok', start, finish, r0, t0, c0, r0, t0, c0}
end

local now = tonumber(ARGV[2])
if now < tonumber(start) or now >= tonumber(finish) then
  return {'noperiod', start, finish}
end

local fields = {{'requests', r0, ARGV[5]}, {'tokens', t0, ARGV[6]}, {'cost', c0, ARGV[7]}}
for _, f in ipairs(fields) do
  if not fits(f[2], f[3]) then
    return {'overflow', f[1], f[2], f[3]}
  end
end

local r1 = redis.call('HINCRBY', ckey, 'requests', ARGV[5])
local t1 = redis.call('HINCRBY', ckey, 'tokens', ARGV[6])
local c1 = redis.call('HINCRBY', ckey, 'cost', ARGV[7])
return {'ok', start, finish, r0, t0, c0, tostring(r1), tostring(t1), tostring(c1)}
`

// openScript closes the current period and opens a new zeroed one.
//
// KEYS[1] period pointer hash
// ARGV    counter key prefix, new start ms, new end ms, archive ttl ms
// Reply   {"same"} | {"stale", start, end} | {"none"} |
//
//	{"archived", start, end, requests, tokens, cost}
const openScript = `
local ptr = KEYS[1]
local start = redis.call('HGET', ptr, 'start')
local finish = redis.call('HGET', ptr, 'end')
if start == ARGV[2] and finish == ARGV[3] then
  return {'same'}
end
if start and tonumber(ARGV[2]) <= tonumber(start) then
  return {'stale', start, finish}
end

local reply = {'none'}
if start then
  local old = ARGV[1] .. start
  redis.call('HSET', old, 'closed', 1)
  redis.call('PEXPIRE', old, ARGV[4])
  local v = redis.call('HMGET', old, 'requests', 'tokens', 'cost')
  reply = {'archived', start, finish, v[1] or '0', v[2] or '0', v[3] or '0'}
end

redis.call('HSET', ptr, 'start', ARGV[2], 'end', ARGV[3])
redis.call('HSET', ARGV[1] .. ARGV[2], 'start', ARGV[2], 'end', ARGV[3],
  'requests', 0, 'tokens', 0, 'cost', 0, 'closed', 0)
return reply
`
