package sqlinline

const QEnsureUsageCounter = `--sql f8db38da-e00b-41b1-a99d-4004efee8a69
insert into usage_counters (user_id, window_kind, window_start, count)
values ($1::text, $2::text, $3::timestamptz, 0)
on conflict (user_id, window_kind, window_start) do nothing;
`

const QLockUsageCounter = `--sql 138f959b-c47e-4414-98c4-060e76591e75
select count
from usage_counters
where user_id = $1::text
  and window_kind = $2::text
  and window_start = $3::timestamptz
for update;
`

const QIncrementUsageCounter = `--sql 020fe045-5b51-42a2-88f7-0634b1da5598
update usage_counters
set count = count + 1,
    updated_at = now()
where user_id = $1::text
  and window_kind = $2::text
  and window_start = $3::timestamptz
returning count;
`

const QSelectUsageCounter = `--sql 435a7ea8-c040-459c-9559-1591b95f9b99
select coalesce((
  select count
  from usage_counters
  where user_id = $1::text
    and window_kind = $2::text
    and window_start = $3::timestamptz
), 0);
`

const QPurgeUsageCounters = `--sql c2e9f68f-906d-4c6d-a3f9-4312f82c7178
delete from usage_counters
where window_kind = $1::text
  and window_start < $2::timestamptz;
`
